package tracker

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"rsi-tracker/internal/indicator"
	"rsi-tracker/internal/logger"
	"rsi-tracker/internal/model"
	"rsi-tracker/internal/signal"
)

// ────────────────────────────────────────────────────────────
// Test doubles
// ────────────────────────────────────────────────────────────

// stubSource serves a canned close series per symbol.
type stubSource struct {
	mu     sync.Mutex
	series map[string]model.Series
	err    error
	calls  []string
}

func (s *stubSource) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.series[symbol], nil
}

// spySink records dispatched signals.
type spySink struct {
	mu   sync.Mutex
	sigs []signal.Signal
}

func (s *spySink) Dispatch(ctx context.Context, sig signal.Signal) bool {
	s.mu.Lock()
	s.sigs = append(s.sigs, sig)
	s.mu.Unlock()
	return true
}

func (s *spySink) dispatched() []signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]signal.Signal(nil), s.sigs...)
}

func makeSeries(closes ...float64) model.Series {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	series := make(model.Series, len(closes))
	for i, c := range closes {
		series[i] = model.Candle{
			Time: base.Add(time.Duration(i) * 24 * time.Hour),
			Open: c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return series
}

// rising returns n strictly increasing closes; its Wilder RSI is exactly 100.
func rising(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

// choppy returns n closes alternating +1/-1; gains and losses balance so
// RSI hovers near 50.
func choppy(n int) []float64 {
	closes := make([]float64, n)
	closes[0] = 100
	for i := 1; i < n; i++ {
		if i%2 == 0 {
			closes[i] = closes[i-1] - 1
		} else {
			closes[i] = closes[i-1] + 1
		}
	}
	return closes
}

func newTestTracker(src Source, sink Sink) *Tracker {
	return New(src, sink, Options{
		Period:       14,
		Method:       indicator.MethodWilder,
		HistoryLimit: 50,
		Concurrency:  2,
	})
}

// ────────────────────────────────────────────────────────────
// Registry
// ────────────────────────────────────────────────────────────

func TestAdd_RejectsBadInput(t *testing.T) {
	tr := newTestTracker(&stubSource{}, &spySink{})

	if err := tr.Add("", "1d", signal.DefaultThresholds()); err == nil {
		t.Error("expected error for empty symbol")
	}
	if err := tr.Add("AAPL", "7h", signal.DefaultThresholds()); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
	overlap := signal.Thresholds{Overbought: 30, Oversold: 70}
	if err := tr.Add("AAPL", "1d", overlap); !errors.Is(err, signal.ErrOverlappingThresholds) {
		t.Errorf("expected ErrOverlappingThresholds, got %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("rejected adds must not register symbols, have %d", tr.Len())
	}
}

func TestAdd_OverwriteKeepsHistory(t *testing.T) {
	src := &stubSource{series: map[string]model.Series{"AAPL": makeSeries(rising(20)...)}}
	tr := newTestTracker(src, &spySink{})

	if err := tr.Add("AAPL", "1d", signal.DefaultThresholds()); err != nil {
		t.Fatalf("add: %v", err)
	}
	tr.UpdateAll(context.Background())
	if len(tr.History("AAPL")) != 1 {
		t.Fatalf("expected 1 history sample, got %d", len(tr.History("AAPL")))
	}

	// Re-add with new settings; history must survive.
	if err := tr.Add("AAPL", "1h", signal.Thresholds{Overbought: 80, Oversold: 20}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if tr.Len() != 1 {
		t.Errorf("re-add must not duplicate the symbol, have %d", tr.Len())
	}
	if len(tr.History("AAPL")) != 1 {
		t.Errorf("re-add dropped the RSI history")
	}
}

func TestRemove_UnknownSymbolIsNoop(t *testing.T) {
	tr := newTestTracker(&stubSource{}, &spySink{})
	tr.Remove("GHOST") // must not panic
	if err := tr.SetThresholds("GHOST", signal.DefaultThresholds()); err == nil {
		t.Error("SetThresholds on unknown symbol should fail")
	}
}

// ────────────────────────────────────────────────────────────
// Update cycle
// ────────────────────────────────────────────────────────────

func TestUpdateAll_DispatchesOnlyNonNeutral(t *testing.T) {
	src := &stubSource{series: map[string]model.Series{
		"UP":   makeSeries(rising(30)...), // RSI 100 -> overbought
		"CHOP": makeSeries(choppy(30)...), // RSI ~50 -> neutral
	}}
	sink := &spySink{}
	tr := newTestTracker(src, sink)
	tr.Add("UP", "1d", signal.DefaultThresholds())
	tr.Add("CHOP", "1d", signal.DefaultThresholds())

	results := tr.UpdateAll(context.Background())

	if len(results) != 2 {
		t.Fatalf("expected both symbols updated, got %v", results)
	}
	if results["UP"] != 100 {
		t.Errorf("all-up series should compute RSI 100, got %.2f", results["UP"])
	}

	sigs := sink.dispatched()
	if len(sigs) != 1 {
		t.Fatalf("expected exactly one dispatched signal, got %d", len(sigs))
	}
	if sigs[0].Symbol != "UP" || sigs[0].Type != signal.Overbought {
		t.Errorf("dispatched %s/%s, want UP/overbought", sigs[0].Symbol, sigs[0].Type)
	}
}

func TestUpdateAll_FlatSeriesIsSkipped(t *testing.T) {
	// A constant series has zero gains and zero losses; the RSI is
	// undefined and the symbol's state must not change.
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	src := &stubSource{series: map[string]model.Series{"DEAD": makeSeries(flat...)}}
	tr := newTestTracker(src, &spySink{})
	tr.Add("DEAD", "1d", signal.DefaultThresholds())

	var failed []string
	tr.OnUpdateError = func(symbol string, err error) { failed = append(failed, symbol) }

	results := tr.UpdateAll(context.Background())

	if len(results) != 0 {
		t.Errorf("undefined RSI must not be reported, got %v", results)
	}
	if len(failed) != 1 || failed[0] != "DEAD" {
		t.Errorf("expected DEAD reported via OnUpdateError, got %v", failed)
	}
	if len(tr.History("DEAD")) != 0 {
		t.Errorf("skipped update must not push history samples")
	}
	if status := tr.Summary().Symbols[0].Status; status != StatusUnknown {
		t.Errorf("skipped symbol should stay %q, got %q", StatusUnknown, status)
	}
}

func TestUpdateAll_SourceErrorDoesNotAbortSiblings(t *testing.T) {
	src := &stubSource{series: map[string]model.Series{
		"OK": makeSeries(rising(30)...),
		// "GONE" has no series: stub returns nil, Compute fails on it.
	}}
	tr := newTestTracker(src, &spySink{})
	tr.Add("OK", "1d", signal.DefaultThresholds())
	tr.Add("GONE", "1d", signal.DefaultThresholds())

	results := tr.UpdateAll(context.Background())

	if _, ok := results["OK"]; !ok {
		t.Error("healthy symbol must still update when a sibling fails")
	}
	if _, ok := results["GONE"]; ok {
		t.Error("failed symbol must not appear in results")
	}
}

func TestUpdateAll_MarketHoursGate(t *testing.T) {
	src := &stubSource{series: map[string]model.Series{
		"AAPL":    makeSeries(rising(30)...),
		"BTC/USD": makeSeries(rising(30)...),
	}}
	tr := New(src, &spySink{}, Options{
		Period: 14, HistoryLimit: 50, Concurrency: 2,
		MarketHoursOnly: true,
	})
	// Saturday: US equities closed, crypto trades on.
	tr.now = func() time.Time {
		return time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)
	}
	tr.Add("AAPL", "1d", signal.DefaultThresholds())
	tr.Add("BTC/USD", "1h", signal.DefaultThresholds())

	results := tr.UpdateAll(context.Background())

	if _, ok := results["AAPL"]; ok {
		t.Error("stock symbol must be gated on a weekend")
	}
	if _, ok := results["BTC/USD"]; !ok {
		t.Error("crypto symbol must update regardless of market hours")
	}
}

func TestUpdateAll_PropagatesTraceContext(t *testing.T) {
	// The monitor stamps each cycle's context with a trace ID; every
	// fetch in that cycle must see it.
	var seen []string
	var seenMu sync.Mutex
	src := traceSource{onFetch: func(ctx context.Context) {
		seenMu.Lock()
		seen = append(seen, logger.TraceID(ctx))
		seenMu.Unlock()
	}}
	tr := newTestTracker(src, &spySink{})
	tr.Add("AAPL", "1d", signal.DefaultThresholds())
	tr.Add("MSFT", "1d", signal.DefaultThresholds())

	ctx := logger.WithTraceID(context.Background(), "cycle-42")
	tr.UpdateAll(ctx)

	if len(seen) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(seen))
	}
	for _, tid := range seen {
		if tid != "cycle-42" {
			t.Errorf("fetch saw trace ID %q, want cycle-42", tid)
		}
	}
}

// traceSource observes the fetch context and serves a fixed rising series.
type traceSource struct {
	onFetch func(ctx context.Context)
}

func (s traceSource) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	s.onFetch(ctx)
	return makeSeries(rising(30)...), nil
}

// ────────────────────────────────────────────────────────────
// Summary
// ────────────────────────────────────────────────────────────

func TestSummary_StatusesAndCounts(t *testing.T) {
	src := &stubSource{series: map[string]model.Series{
		"UP":  makeSeries(rising(30)...),
		"MID": makeSeries(choppy(30)...),
	}}
	tr := newTestTracker(src, &spySink{})
	tr.Add("UP", "1d", signal.DefaultThresholds())
	tr.Add("MID", "1d", signal.DefaultThresholds())
	// NEW has no series in the stub, so its update fails and it stays unknown.
	tr.Add("NEW", "1d", signal.DefaultThresholds())

	tr.UpdateAll(context.Background())

	s := tr.Summary()
	if s.TotalSymbols != 3 {
		t.Fatalf("expected 3 symbols, got %d", s.TotalSymbols)
	}
	want := map[string]string{"UP": "overbought", "MID": "neutral", "NEW": StatusUnknown}
	for _, sym := range s.Symbols {
		if sym.Status != want[sym.Symbol] {
			t.Errorf("%s: status %q, want %q", sym.Symbol, sym.Status, want[sym.Symbol])
		}
		if sym.Symbol == "NEW" && !math.IsNaN(sym.RSI) {
			t.Errorf("never-updated symbol must report NaN RSI, got %v", sym.RSI)
		}
	}
	if s.ByStatus["overbought"] != 1 || s.ByStatus["neutral"] != 1 || s.ByStatus[StatusUnknown] != 1 {
		t.Errorf("status counts wrong: %v", s.ByStatus)
	}

	// Sorted by symbol
	for i := 1; i < len(s.Symbols); i++ {
		if s.Symbols[i-1].Symbol > s.Symbols[i].Symbol {
			t.Errorf("summary not sorted: %s before %s", s.Symbols[i-1].Symbol, s.Symbols[i].Symbol)
		}
	}
}
