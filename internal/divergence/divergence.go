// Package divergence finds local extrema in price and RSI series and flags
// bullish/bearish divergences between them.
package divergence

import "math"

// DefaultWindow is the symmetric lookback used for extremum detection.
const DefaultWindow = 20

// Point marks a divergence at a price extremum. Price is taken at the price
// extremum index, RSI at the nearest RSI extremum.
type Point struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
	RSI   float64 `json:"rsi"`
}

// Result groups detected divergences by direction, ascending by index.
type Result struct {
	Bullish []Point `json:"bullish"`
	Bearish []Point `json:"bearish"`
}

// Peaks returns indices of local maxima: index i qualifies when series[i] is
// greater than or equal to every element of series[i-window .. i+window]
// inclusive. Indices within window of either end are never candidates, and
// windows containing NaN never qualify (the RSI warmup region stays out).
func Peaks(series []float64, window int) []int {
	return extrema(series, window, func(cand, other float64) bool { return cand >= other })
}

// Troughs is the mirror of Peaks for local minima.
func Troughs(series []float64, window int) []int {
	return extrema(series, window, func(cand, other float64) bool { return cand <= other })
}

func extrema(series []float64, window int, dominates func(cand, other float64) bool) []int {
	var out []int
	if window < 1 {
		return out
	}
	for i := window; i < len(series)-window; i++ {
		qualifies := true
		for j := i - window; j <= i+window; j++ {
			if math.IsNaN(series[j]) || !dominates(series[i], series[j]) {
				qualifies = false
				break
			}
		}
		if qualifies {
			out = append(out, i)
		}
	}
	return out
}

// Detect scans aligned price and RSI series for divergences.
//
// Bearish: consecutive price peaks make a higher high while the nearest RSI
// peaks make a lower high (momentum weakening on a rising price). Bullish:
// consecutive price troughs make a lower low while the nearest RSI troughs
// make a higher low. A price extremum with no RSI extremum to pair with is
// skipped. Pure function; the scan covers the common length of both series.
func Detect(prices, rsi []float64, window int) Result {
	n := len(prices)
	if len(rsi) < n {
		n = len(rsi)
	}
	prices, rsi = prices[:n], rsi[:n]

	pricePeaks := Peaks(prices, window)
	priceTroughs := Troughs(prices, window)
	rsiPeaks := Peaks(rsi, window)
	rsiTroughs := Troughs(rsi, window)

	var res Result

	for i := 1; i < len(pricePeaks); i++ {
		prev, curr := pricePeaks[i-1], pricePeaks[i]
		rsiPrev, okPrev := nearest(rsiPeaks, prev)
		rsiCurr, okCurr := nearest(rsiPeaks, curr)
		if !okPrev || !okCurr {
			continue
		}
		if prices[curr] > prices[prev] && rsi[rsiCurr] < rsi[rsiPrev] {
			res.Bearish = append(res.Bearish, Point{Index: curr, Price: prices[curr], RSI: rsi[rsiCurr]})
		}
	}

	for i := 1; i < len(priceTroughs); i++ {
		prev, curr := priceTroughs[i-1], priceTroughs[i]
		rsiPrev, okPrev := nearest(rsiTroughs, prev)
		rsiCurr, okCurr := nearest(rsiTroughs, curr)
		if !okPrev || !okCurr {
			continue
		}
		if prices[curr] < prices[prev] && rsi[rsiCurr] > rsi[rsiPrev] {
			res.Bullish = append(res.Bullish, Point{Index: curr, Price: prices[curr], RSI: rsi[rsiCurr]})
		}
	}

	return res
}

// nearest picks the candidate index with the smallest absolute distance to
// target; ties go to the lowest index. ok is false with no candidates.
func nearest(candidates []int, target int) (idx int, ok bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if abs(c-target) < abs(best-target) {
			best = c
		}
	}
	return best, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
