package alert

import (
	"context"
	"testing"
	"time"

	"rsi-tracker/internal/signal"
)

func TestMemoryLedger_OneEntryPerPair(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()

	led.Record(ctx, "AAPL", signal.Overbought, t0)
	led.Record(ctx, "AAPL", signal.Overbought, t0.Add(2*time.Hour))

	entries, err := led.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (one entry per pair)", len(entries))
	}
	if !entries[0].At.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("entry time = %v, want the later recording", entries[0].At)
	}

	at, ok, err := led.Last(ctx, "AAPL", signal.Overbought)
	if err != nil || !ok {
		t.Fatalf("Last = %v, %v, %v", at, ok, err)
	}
	if !at.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("Last = %v, want %v", at, t0.Add(2*time.Hour))
	}
}

func TestMemoryLedger_UnknownPair(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()

	_, ok, err := led.Last(ctx, "AAPL", signal.Oversold)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if ok {
		t.Error("Last reported an entry for an empty ledger")
	}
}

func TestMemoryLedger_PrunesBeyondRetention(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()

	led.Record(ctx, "OLD", signal.Overbought, t0)
	// Recording 25h later pushes the first entry past the 24h window.
	led.Record(ctx, "NEW", signal.Overbought, t0.Add(25*time.Hour))

	entries, _ := led.Entries(ctx)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 after pruning", len(entries))
	}
	if entries[0].Symbol != "NEW" {
		t.Errorf("surviving entry = %s, want NEW", entries[0].Symbol)
	}
}

func TestMemoryLedger_EntriesSortedByTime(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()

	led.Record(ctx, "B", signal.Oversold, t0.Add(2*time.Hour))
	led.Record(ctx, "A", signal.Overbought, t0)
	led.Record(ctx, "C", signal.Overbought, t0.Add(time.Hour))

	entries, _ := led.Entries(ctx)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].At.Before(entries[i-1].At) {
			t.Errorf("entries out of order at %d: %v before %v", i, entries[i].At, entries[i-1].At)
		}
	}
}

func TestComputeStats(t *testing.T) {
	now := t0.Add(26 * time.Hour)
	entries := []Entry{
		{Symbol: "AAPL", Type: signal.Overbought, At: now.Add(-30 * time.Minute)},
		{Symbol: "AAPL", Type: signal.Oversold, At: now.Add(-5 * time.Hour)},
		{Symbol: "MSFT", Type: signal.Overbought, At: now.Add(-23 * time.Hour)},
	}

	s := computeStats(entries, now)

	if s.TotalRecent != 3 {
		t.Errorf("TotalRecent = %d, want 3", s.TotalRecent)
	}
	if s.LastHour != 1 {
		t.Errorf("LastHour = %d, want 1", s.LastHour)
	}
	if s.Last24h != 3 {
		t.Errorf("Last24h = %d, want 3", s.Last24h)
	}
	if s.BySymbol["AAPL"] != 2 || s.BySymbol["MSFT"] != 1 {
		t.Errorf("BySymbol = %v", s.BySymbol)
	}
	if s.ByType[signal.Overbought] != 2 || s.ByType[signal.Oversold] != 1 {
		t.Errorf("ByType = %v", s.ByType)
	}
}
