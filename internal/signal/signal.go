// Package signal classifies RSI values against configured thresholds.
package signal

import (
	"errors"
	"fmt"
	"time"
)

// Type labels the threshold region an RSI value falls into.
type Type string

const (
	Overbought Type = "overbought"
	Oversold   Type = "oversold"
	Neutral    Type = "neutral"
)

// ErrOverlappingThresholds flags a configuration where the overbought bound
// does not sit above the oversold bound.
var ErrOverlappingThresholds = errors.New("signal: overbought threshold must exceed oversold threshold")

// Thresholds holds the overbought/oversold bounds for one symbol.
type Thresholds struct {
	Overbought float64 `json:"overbought"`
	Oversold   float64 `json:"oversold"`
}

// DefaultThresholds returns the conventional 70/30 bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Overbought: 70, Oversold: 30}
}

// Validate rejects overlapping bounds. Classification still resolves an
// overlap (overbought wins), but such a configuration is almost certainly a
// mistake, so callers get an error to surface instead of a silent fix-up.
func (t Thresholds) Validate() error {
	if t.Overbought <= t.Oversold {
		return fmt.Errorf("%w (overbought=%.2f oversold=%.2f)", ErrOverlappingThresholds, t.Overbought, t.Oversold)
	}
	return nil
}

// Classify maps an RSI value onto a signal type. The overbought bound is
// checked first and takes precedence should the thresholds overlap.
func (t Thresholds) Classify(rsi float64) Type {
	switch {
	case rsi >= t.Overbought:
		return Overbought
	case rsi <= t.Oversold:
		return Oversold
	}
	return Neutral
}

// Signal is one classified RSI observation. Immutable once created; the
// alert dispatcher consumes and discards it.
type Signal struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	RSI       float64   `json:"rsi_value"`
	Type      Type      `json:"signal_type"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume,omitempty"`
}

// Classify builds the Signal for a symbol's latest RSI observation, stamped
// with the current UTC time.
func Classify(symbol string, rsi, price, volume float64, th Thresholds) Signal {
	return Signal{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		RSI:       rsi,
		Type:      th.Classify(rsi),
		Price:     price,
		Volume:    volume,
	}
}
