package alert

import (
	"context"
	"time"

	"rsi-tracker/internal/signal"
)

// Stats summarizes the deliveries the ledger currently remembers.
type Stats struct {
	TotalRecent int                 `json:"total_recent"`
	LastHour    int                 `json:"last_hour"`
	Last24h     int                 `json:"last_24h"`
	BySymbol    map[string]int      `json:"by_symbol"`
	ByType      map[signal.Type]int `json:"by_type"`
}

// Stats reports delivery counts derived from the ledger entries.
func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	entries, err := d.ledger.Entries(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(entries, time.Now().UTC()), nil
}

func computeStats(entries []Entry, now time.Time) Stats {
	s := Stats{
		BySymbol: make(map[string]int),
		ByType:   make(map[signal.Type]int),
	}
	for _, e := range entries {
		s.TotalRecent++
		age := now.Sub(e.At)
		if age <= time.Hour {
			s.LastHour++
		}
		if age <= 24*time.Hour {
			s.Last24h++
		}
		s.BySymbol[e.Symbol]++
		s.ByType[e.Type]++
	}
	return s
}
