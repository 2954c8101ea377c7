// Package indicator provides batch RSI calculations over closing-price
// series.
//
// Both variants return one value per input index. Indices before the warmup
// period are NaN, never a numeric placeholder, and callers are expected to
// check with math.IsNaN.
package indicator

import (
	"fmt"
	"strings"
)

// Method selects the RSI smoothing variant.
type Method string

const (
	// MethodSMA averages gains and losses with a simple moving average.
	MethodSMA Method = "sma"

	// MethodWilder applies Wilder's exponential smoothing (alpha = 1/period).
	MethodWilder Method = "wilder"
)

// ParseMethod converts a config/CLI string into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(s)) {
	case MethodSMA:
		return MethodSMA, nil
	case MethodWilder:
		return MethodWilder, nil
	}
	return "", fmt.Errorf("indicator: unknown RSI method %q", s)
}

// Compute runs the RSI variant selected by method.
func Compute(method Method, prices []float64, period int) ([]float64, error) {
	switch method {
	case MethodSMA:
		return RSI(prices, period)
	case MethodWilder:
		return WilderRSI(prices, period)
	}
	return nil, fmt.Errorf("indicator: unknown RSI method %q", method)
}
