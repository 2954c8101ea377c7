package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"rsi-tracker/internal/signal"
)

// RetentionWindow bounds how long a delivery is remembered. Entries older
// than this are dropped whenever a new delivery is recorded.
const RetentionWindow = 24 * time.Hour

// Entry is one remembered delivery: the most recent alert sent for a
// (symbol, signal type) pair.
type Entry struct {
	Symbol string      `json:"symbol"`
	Type   signal.Type `json:"signal_type"`
	At     time.Time   `json:"at"`
}

// Ledger remembers the last delivered alert per (symbol, signal type) so
// the dispatcher can enforce its cooldown. Implementations keep at most
// one entry per pair.
type Ledger interface {
	// Last reports when an alert for the pair was last delivered.
	Last(ctx context.Context, symbol string, typ signal.Type) (time.Time, bool, error)

	// Record stores the delivery time for the pair, replacing any earlier
	// entry, and prunes entries older than the retention window.
	Record(ctx context.Context, symbol string, typ signal.Type, at time.Time) error

	// Entries returns every remembered delivery, oldest first.
	Entries(ctx context.Context) ([]Entry, error)
}

// MemoryLedger keeps cooldown state in process memory. It is the default
// backend; state does not survive a restart.
type MemoryLedger struct {
	mu   sync.RWMutex
	last map[ledgerKey]time.Time
}

type ledgerKey struct {
	symbol string
	typ    signal.Type
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{last: make(map[ledgerKey]time.Time)}
}

func (l *MemoryLedger) Last(ctx context.Context, symbol string, typ signal.Type) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.last[ledgerKey{symbol, typ}]
	return at, ok, nil
}

func (l *MemoryLedger) Record(ctx context.Context, symbol string, typ signal.Type, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[ledgerKey{symbol, typ}] = at

	cutoff := at.Add(-RetentionWindow)
	for k, v := range l.last {
		if v.Before(cutoff) {
			delete(l.last, k)
		}
	}
	return nil
}

func (l *MemoryLedger) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.last))
	for k, at := range l.last {
		out = append(out, Entry{Symbol: k.symbol, Type: k.typ, At: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}
