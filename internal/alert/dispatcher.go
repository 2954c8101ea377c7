// Package alert applies cooldown policy to classified signals and fans
// them out to the configured notification channels.
package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"rsi-tracker/internal/notification"
	"rsi-tracker/internal/signal"
)

// DefaultCooldown is the minimum gap between two alerts for the same
// (symbol, signal type) pair.
const DefaultCooldown = 60 * time.Minute

// Dispatcher delivers signals to every configured channel, subject to a
// per-(symbol, signal type) cooldown tracked in the ledger.
type Dispatcher struct {
	channels []notification.Notifier
	ledger   Ledger
	cooldown time.Duration

	// Callbacks (optional)
	OnResult     func(channel string, err error) // called per channel attempt
	OnSuppressed func(sig signal.Signal)         // called when cooldown suppresses a signal
	OnDelivered  func(sig signal.Signal)         // called once per delivered alert
}

// NewDispatcher creates a dispatcher over the given channels. A nil ledger
// falls back to the in-memory backend; cooldown <= 0 falls back to
// DefaultCooldown.
func NewDispatcher(channels []notification.Notifier, ledger Ledger, cooldown time.Duration) *Dispatcher {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Dispatcher{
		channels: channels,
		ledger:   ledger,
		cooldown: cooldown,
	}
}

// Channels returns the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch delivers sig to all channels unless the (symbol, signal type)
// pair is still cooling down. It reports whether at least one channel
// succeeded; the delivery is recorded only in that case, so a fully failed
// dispatch leaves the pair eligible for immediate retry. Signal type is
// not inspected beyond keying: callers decide what is alert-worthy.
func (d *Dispatcher) Dispatch(ctx context.Context, sig signal.Signal) bool {
	last, ok, err := d.ledger.Last(ctx, sig.Symbol, sig.Type)
	if err != nil {
		// A broken ledger must not silence alerts. Send anyway.
		log.Printf("[alert] ledger lookup failed for %s/%s: %v (sending anyway)", sig.Symbol, sig.Type, err)
	} else if ok && sig.Timestamp.Sub(last) < d.cooldown {
		log.Printf("[alert] %s/%s still cooling down, suppressed", sig.Symbol, sig.Type)
		if d.OnSuppressed != nil {
			d.OnSuppressed(sig)
		}
		return false
	}

	delivered := 0
	for _, ch := range d.channels {
		err := d.safeSend(ctx, ch, sig)
		if d.OnResult != nil {
			d.OnResult(ch.Name(), err)
		}
		if err != nil {
			log.Printf("[alert] channel %s failed: %v", ch.Name(), err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return false
	}
	if d.OnDelivered != nil {
		d.OnDelivered(sig)
	}

	if err := d.ledger.Record(ctx, sig.Symbol, sig.Type, sig.Timestamp); err != nil {
		log.Printf("[alert] record failed for %s/%s: %v", sig.Symbol, sig.Type, err)
	}
	return true
}

// TestChannels pushes a canned overbought signal through every channel,
// bypassing the cooldown, and reports the per-channel outcome.
func (d *Dispatcher) TestChannels(ctx context.Context) map[string]bool {
	sig := signal.Signal{
		Symbol:    "TEST",
		Timestamp: time.Now().UTC(),
		RSI:       75,
		Type:      signal.Overbought,
		Price:     100.0,
	}

	results := make(map[string]bool, len(d.channels))
	for _, ch := range d.channels {
		err := d.safeSend(ctx, ch, sig)
		if err != nil {
			log.Printf("[alert] test send on %s failed: %v", ch.Name(), err)
		}
		results[ch.Name()] = err == nil
	}
	return results
}

// safeSend shields the dispatcher from a panicking channel so one bad
// notifier cannot take down the delivery loop.
func (d *Dispatcher) safeSend(ctx context.Context, ch notification.Notifier, sig signal.Signal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, sig)
}
