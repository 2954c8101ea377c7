// Package tracker maintains the per-symbol registry and runs the update
// cycle wiring data fetch, RSI computation, signal classification and
// alert dispatch together.
package tracker

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"rsi-tracker/internal/indicator"
	"rsi-tracker/internal/markethours"
	"rsi-tracker/internal/model"
	"rsi-tracker/internal/provider"
	"rsi-tracker/internal/ringbuf"
	"rsi-tracker/internal/signal"
)

// Source supplies historical candles for a symbol. Satisfied by
// *provider.Fetcher.
type Source interface {
	Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error)
}

// Sink receives classified signals. Satisfied by *alert.Dispatcher.
type Sink interface {
	Dispatch(ctx context.Context, sig signal.Signal) bool
}

// Options tunes the tracker. Zero values fall back to the documented
// defaults.
type Options struct {
	Period       int              // RSI period (default 14)
	Method       indicator.Method // RSI variant (default wilder)
	HistoryLimit int              // candles fetched per update (default 100)
	Concurrency  int              // parallel symbol updates (default 4)
	HistoryDepth int              // RSI samples retained per symbol (default 64)

	// MarketHoursOnly skips stock symbols outside the US equity session.
	// Crypto symbols always update.
	MarketHoursOnly bool
}

const (
	defaultPeriod       = 14
	defaultHistoryLimit = 100
	defaultConcurrency  = 4
	defaultHistoryDepth = 64
)

// entry is the tracked state for one symbol. lastRSI stays NaN until the
// first successful update.
type entry struct {
	timeframe  string
	thresholds signal.Thresholds
	lastRSI    float64
	lastUpdate time.Time
	history    *ringbuf.Ring
}

// Tracker owns the symbol registry. Safe for concurrent use; the update
// fan-out itself runs on a bounded worker pool.
type Tracker struct {
	source Source
	sink   Sink
	opts   Options

	mu      sync.RWMutex
	entries map[string]*entry

	now func() time.Time

	// Callbacks (optional)
	OnSignal          func(sig signal.Signal) // every non-neutral classification
	OnUpdateError     func(symbol string, err error)
	OnCompute         func(symbol string, dur time.Duration)
	OnHistoryOverflow func(symbol string)
}

// New creates a tracker over the given data source and alert sink.
func New(source Source, sink Sink, opts Options) *Tracker {
	if opts.Period <= 0 {
		opts.Period = defaultPeriod
	}
	if opts.Method == "" {
		opts.Method = indicator.MethodWilder
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = defaultHistoryDepth
	}
	return &Tracker{
		source:  source,
		sink:    sink,
		opts:    opts,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Add registers a symbol for tracking. Re-adding an existing symbol
// overwrites its timeframe and thresholds but keeps its RSI history.
func (t *Tracker) Add(symbol, timeframe string, th signal.Thresholds) error {
	if symbol == "" {
		return fmt.Errorf("tracker: empty symbol")
	}
	if !model.ValidTimeframe(timeframe) {
		return fmt.Errorf("tracker: timeframe %q not in %v", timeframe, model.Timeframes)
	}
	if err := th.Validate(); err != nil {
		return fmt.Errorf("tracker: %s: %w", symbol, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[symbol]; ok {
		e.timeframe = timeframe
		e.thresholds = th
		return nil
	}
	t.entries[symbol] = &entry{
		timeframe:  timeframe,
		thresholds: th,
		lastRSI:    math.NaN(),
		history:    ringbuf.New(t.opts.HistoryDepth),
	}
	return nil
}

// Remove drops a symbol and its history. Removing an unknown symbol is a
// no-op.
func (t *Tracker) Remove(symbol string) {
	t.mu.Lock()
	delete(t.entries, symbol)
	t.mu.Unlock()
}

// SetThresholds replaces the thresholds for an already tracked symbol.
func (t *Tracker) SetThresholds(symbol string, th signal.Thresholds) error {
	if err := th.Validate(); err != nil {
		return fmt.Errorf("tracker: %s: %w", symbol, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[symbol]
	if !ok {
		return fmt.Errorf("tracker: symbol %s not tracked", symbol)
	}
	e.thresholds = th
	return nil
}

// Symbols returns the tracked symbols in registry order (unsorted).
func (t *Tracker) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for s := range t.entries {
		out = append(out, s)
	}
	return out
}

// Len returns the number of tracked symbols.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// History returns the retained RSI samples for a symbol, oldest first.
func (t *Tracker) History(symbol string) []ringbuf.Sample {
	t.mu.RLock()
	e, ok := t.entries[symbol]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.history.Snapshot()
}

// UpdateAll refreshes every tracked symbol over a bounded worker pool and
// returns the symbols that produced a defined RSI value this cycle.
// Non-neutral classifications are handed to the alert sink.
func (t *Tracker) UpdateAll(ctx context.Context) map[string]float64 {
	symbols := t.Symbols()

	var (
		resMu   sync.Mutex
		results = make(map[string]float64, len(symbols))
		wg      sync.WaitGroup
		sem     = make(chan struct{}, t.opts.Concurrency)
	)
	for _, symbol := range symbols {
		if t.skipForSession(symbol) {
			log.Printf("[tracker] %s skipped, market closed", symbol)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			rsi, err := t.updateOne(ctx, symbol)
			if err != nil {
				log.Printf("[tracker] update %s failed: %v", symbol, err)
				if t.OnUpdateError != nil {
					t.OnUpdateError(symbol, err)
				}
				return
			}
			resMu.Lock()
			results[symbol] = rsi
			resMu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return results
}

// skipForSession applies the optional market-hours gate. Crypto trades
// around the clock and is never gated.
func (t *Tracker) skipForSession(symbol string) bool {
	if !t.opts.MarketHoursOnly || provider.IsCrypto(symbol) {
		return false
	}
	return !markethours.IsMarketOpen(t.now())
}

// updateOne fetches history, computes RSI and classifies the latest value
// for one symbol. A degenerate flat window (NaN RSI) leaves the symbol's
// state untouched.
func (t *Tracker) updateOne(ctx context.Context, symbol string) (float64, error) {
	t.mu.RLock()
	e, ok := t.entries[symbol]
	timeframe := ""
	th := signal.Thresholds{}
	if ok {
		timeframe = e.timeframe
		th = e.thresholds
	}
	t.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("symbol %s not tracked", symbol)
	}

	series, err := t.source.Historical(ctx, symbol, timeframe, t.opts.HistoryLimit)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	start := t.now()
	values, err := indicator.Compute(t.opts.Method, series.Closes(), t.opts.Period)
	if t.OnCompute != nil {
		t.OnCompute(symbol, time.Since(start))
	}
	if err != nil {
		return 0, fmt.Errorf("rsi: %w", err)
	}
	rsi := values[len(values)-1]
	if math.IsNaN(rsi) {
		return 0, fmt.Errorf("rsi undefined (flat window)")
	}

	now := t.now().UTC()
	t.mu.Lock()
	// The entry may have been removed mid-update; drop the result then.
	if e2, stillThere := t.entries[symbol]; stillThere {
		e2.lastRSI = rsi
		e2.lastUpdate = now
		if e2.history.Push(ringbuf.Sample{At: now, RSI: rsi}) && t.OnHistoryOverflow != nil {
			t.OnHistoryOverflow(symbol)
		}
	}
	t.mu.Unlock()

	last := series.Last()
	sig := signal.Classify(symbol, rsi, last.Close, last.Volume, th)
	if sig.Type != signal.Neutral {
		if t.OnSignal != nil {
			t.OnSignal(sig)
		}
		if t.sink != nil {
			t.sink.Dispatch(ctx, sig)
		}
	}
	return rsi, nil
}
