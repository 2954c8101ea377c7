package model

// Timeframes supported across the data providers. Individual providers may
// reject a subset (Yahoo has no 4h interval).
var Timeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// ValidTimeframe reports whether tf is one of the supported timeframes.
func ValidTimeframe(tf string) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}
