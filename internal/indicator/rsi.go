package indicator

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPeriod is returned when a period below 1 is requested.
var ErrInvalidPeriod = errors.New("indicator: period must be at least 1")

// InsufficientDataError reports a price series too short for the requested
// period. RSI needs period+1 prices to form period deltas.
type InsufficientDataError struct {
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("indicator: need at least %d price points, got %d", e.Need, e.Got)
}

// RSI calculates the Relative Strength Index using a simple moving average
// of gains and losses over a trailing window of period deltas.
//
// The window for index i covers the deltas at i-period+1 .. i, so the first
// defined value sits at index period. A window with zero losses but positive
// gains is exactly 100; a window with zero gains and zero losses is NaN
// (0/0 has no meaningful RSI).
func RSI(prices []float64, period int) ([]float64, error) {
	if err := checkInput(prices, period); err != nil {
		return nil, err
	}

	gains, losses := splitDeltas(prices)
	out := undefinedSeries(len(prices))

	// Rolling sums over the trailing window: add the newest delta,
	// subtract the one falling out.
	var sumGain, sumLoss float64
	for i := 1; i < len(prices); i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
		if i > period {
			sumGain -= gains[i-period]
			sumLoss -= losses[i-period]
		}
		if i >= period {
			p := float64(period)
			out[i] = rsiFromAverages(sumGain/p, sumLoss/p)
		}
	}
	return out, nil
}

// WilderRSI calculates the Relative Strength Index using Wilder's
// exponential smoothing.
//
// The value at index period seeds the averages with the simple mean of the
// first period deltas; later indices apply avg = alpha*current +
// (1-alpha)*previous with alpha = 1/period. The seed equals the first
// simple-moving-average window, so both variants agree exactly at index
// period. Warmup and degenerate-case semantics match RSI.
func WilderRSI(prices []float64, period int) ([]float64, error) {
	if err := checkInput(prices, period); err != nil {
		return nil, err
	}

	gains, losses := splitDeltas(prices)
	out := undefinedSeries(len(prices))

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := period; i < len(prices); i++ {
		if i == period {
			for j := 1; j <= period; j++ {
				avgGain += gains[j]
				avgLoss += losses[j]
			}
			avgGain /= float64(period)
			avgLoss /= float64(period)
		} else {
			avgGain = alpha*gains[i] + (1-alpha)*avgGain
			avgLoss = alpha*losses[i] + (1-alpha)*avgLoss
		}
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out, nil
}

func checkInput(prices []float64, period int) error {
	if period < 1 {
		return ErrInvalidPeriod
	}
	if len(prices) < period+1 {
		return &InsufficientDataError{Need: period + 1, Got: len(prices)}
	}
	return nil
}

// splitDeltas separates per-step price changes into gain and loss magnitudes,
// aligned to price indices. Index 0 carries no delta.
func splitDeltas(prices []float64) (gains, losses []float64) {
	gains = make([]float64, len(prices))
	losses = make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	return gains, losses
}

// rsiFromAverages maps average gain/loss onto the RSI scale. avgLoss of zero
// is the degenerate division case: pure-gain windows saturate at exactly 100,
// all-flat windows have no defined value.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return math.NaN()
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
