// Package notification delivers RSI alert signals to external channels
// (email, SMS, webhooks, Telegram).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"rsi-tracker/internal/signal"
)

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name identifies the channel in diagnostics and logs.
	Name() string

	// Send delivers a signal. Returns error if delivery fails; the
	// dispatcher downgrades any error to a per-channel boolean outcome.
	Send(ctx context.Context, sig signal.Signal) error
}

// ErrNotConfigured marks a channel that is enabled but missing required
// credentials or recipients. Such a channel reports failure without doing
// any I/O.
var ErrNotConfigured = errors.New("channel not configured")

// LogNotifier writes alerts to the process log (useful for development and
// as a fallback when no external channel is enabled).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, sig signal.Signal) error {
	log.Printf("[notify] %s RSI Alert: %s is %s with RSI %.2f (price %.2f)",
		emoji(sig.Type), sig.Symbol, sig.Type, sig.RSI, sig.Price)
	return nil
}

func emoji(t signal.Type) string {
	switch t {
	case signal.Overbought:
		return "🔴"
	case signal.Oversold:
		return "🟢"
	}
	return "🟡"
}

// subjectLine renders the alert headline shared by email and Telegram.
func subjectLine(sig signal.Signal) string {
	return fmt.Sprintf("RSI Alert: %s - %s", sig.Symbol, title(string(sig.Type)))
}

// messageText renders the compact alert body shared by the text channels.
func messageText(sig signal.Signal) string {
	return fmt.Sprintf("%s RSI Alert: %s\nSignal: %s\nRSI: %.1f\nPrice: $%.2f\nTime: %s",
		emoji(sig.Type), sig.Symbol, title(string(sig.Type)), sig.RSI, sig.Price,
		sig.Timestamp.UTC().Format("15:04 UTC"))
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
