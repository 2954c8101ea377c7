package tracker

import (
	"math"
	"sort"
	"time"
)

// StatusUnknown marks a symbol that has not completed an update yet.
const StatusUnknown = "unknown"

// SymbolStatus is the summary line for one tracked symbol. RSI is NaN and
// Status is "unknown" before the first successful update.
type SymbolStatus struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	RSI        float64   `json:"rsi"`
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"last_update"`
}

// Summary is a point-in-time view of the whole registry.
type Summary struct {
	TotalSymbols int            `json:"total_symbols"`
	Symbols      []SymbolStatus `json:"symbols"`
	ByStatus     map[string]int `json:"by_status"`
}

// Summary reports every tracked symbol with its latest RSI and threshold
// status, sorted by symbol.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{
		TotalSymbols: len(t.entries),
		Symbols:      make([]SymbolStatus, 0, len(t.entries)),
		ByStatus:     make(map[string]int),
	}
	for symbol, e := range t.entries {
		status := StatusUnknown
		if !math.IsNaN(e.lastRSI) {
			status = string(e.thresholds.Classify(e.lastRSI))
		}
		s.Symbols = append(s.Symbols, SymbolStatus{
			Symbol:     symbol,
			Timeframe:  e.timeframe,
			RSI:        e.lastRSI,
			Status:     status,
			LastUpdate: e.lastUpdate,
		})
		s.ByStatus[status]++
	}
	sort.Slice(s.Symbols, func(i, j int) bool {
		return s.Symbols[i].Symbol < s.Symbols[j].Symbol
	})
	return s
}
