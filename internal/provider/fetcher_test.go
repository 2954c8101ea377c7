package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"rsi-tracker/internal/model"
)

type stubProvider struct {
	name   string
	series model.Series
	quote  model.Quote
	err    error

	historicalCalls int
	quoteCalls      int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	s.historicalCalls++
	return s.series, s.err
}

func (s *stubProvider) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	s.quoteCalls++
	return s.quote, s.err
}

func oneBar(close float64) model.Series {
	return model.Series{{Time: time.Unix(1700000000, 0).UTC(), Close: close}}
}

func TestFetcher_RoutesCryptoToCryptoProvider(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks", series: oneBar(1)}
	crypto := &stubProvider{name: "crypto", series: oneBar(2)}
	f := newFetcher(stocks, nil, crypto, FetcherConfig{})

	series, err := f.Historical(ctx, "BTC/USD", "1d", 100)
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	if series[0].Close != 2 {
		t.Error("crypto symbol served by the wrong provider")
	}
	if stocks.historicalCalls != 0 || crypto.historicalCalls != 1 {
		t.Errorf("calls: stocks=%d crypto=%d", stocks.historicalCalls, crypto.historicalCalls)
	}
}

func TestFetcher_RoutesStocksToStockProvider(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks", series: oneBar(1)}
	crypto := &stubProvider{name: "crypto", series: oneBar(2)}
	f := newFetcher(stocks, nil, crypto, FetcherConfig{})

	series, err := f.Historical(ctx, "AAPL", "1d", 100)
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	if series[0].Close != 1 {
		t.Error("stock symbol served by the wrong provider")
	}
}

func TestFetcher_FallsBackOnStockFailure(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks", err: errors.New("rate limited")}
	fallback := &stubProvider{name: "fallback", series: oneBar(3)}
	crypto := &stubProvider{name: "crypto"}
	f := newFetcher(stocks, fallback, crypto, FetcherConfig{})

	series, err := f.Historical(ctx, "AAPL", "1d", 100)
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	if series[0].Close != 3 {
		t.Error("fallback result not returned")
	}
	if stocks.historicalCalls != 1 || fallback.historicalCalls != 1 {
		t.Errorf("calls: stocks=%d fallback=%d", stocks.historicalCalls, fallback.historicalCalls)
	}
}

func TestFetcher_NoFallbackWithoutKey(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("rate limited")
	stocks := &stubProvider{name: "stocks", err: wantErr}
	crypto := &stubProvider{name: "crypto"}
	f := newFetcher(stocks, nil, crypto, FetcherConfig{})

	_, err := f.Historical(ctx, "AAPL", "1d", 100)
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want the provider error passed through", err)
	}
}

func TestFetcher_CryptoFailureDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks", series: oneBar(1)}
	fallback := &stubProvider{name: "fallback", series: oneBar(3)}
	crypto := &stubProvider{name: "crypto", err: errors.New("down")}
	f := newFetcher(stocks, fallback, crypto, FetcherConfig{})

	if _, err := f.Historical(ctx, "BTC/USD", "1d", 100); err == nil {
		t.Fatal("expected crypto error to surface")
	}
	if fallback.historicalCalls != 0 {
		t.Error("crypto symbols must not fall back to the stock fallback")
	}
}

func TestFetcher_BreakerTripsAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks", err: errors.New("down")}
	crypto := &stubProvider{name: "crypto"}
	f := newFetcher(stocks, nil, crypto, FetcherConfig{MaxFailures: 2, ResetTimeout: time.Minute})

	f.Historical(ctx, "AAPL", "1d", 100)
	f.Historical(ctx, "AAPL", "1d", 100)

	// Breaker is now open: the provider must not be called again.
	_, err := f.Historical(ctx, "AAPL", "1d", 100)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if stocks.historicalCalls != 2 {
		t.Errorf("provider called %d times, want 2 (breaker rejects the third)", stocks.historicalCalls)
	}
}

func TestFetcher_Quotes_SkipsFailures(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks", quote: model.Quote{Symbol: "AAPL", Price: 100}}
	crypto := &stubProvider{name: "crypto", err: errors.New("down")}
	f := newFetcher(stocks, nil, crypto, FetcherConfig{})

	got := f.Quotes(ctx, []string{"AAPL", "BTC/USD"})
	if len(got) != 1 {
		t.Fatalf("quotes = %d, want 1 (failed symbol skipped)", len(got))
	}
	if got["AAPL"].Price != 100 {
		t.Errorf("AAPL quote = %+v", got["AAPL"])
	}
}

func TestFetcher_TestConnection(t *testing.T) {
	ctx := context.Background()
	stocks := &stubProvider{name: "stocks"}
	fallback := &stubProvider{name: "fallback", err: errors.New("bad key")}
	crypto := &stubProvider{name: "crypto"}
	f := newFetcher(stocks, fallback, crypto, FetcherConfig{})

	got := f.TestConnection(ctx)

	want := map[string]bool{"stocks": true, "fallback": false, "crypto": true}
	for name, ok := range want {
		if got[name] != ok {
			t.Errorf("TestConnection[%q] = %v, want %v", name, got[name], ok)
		}
	}
}
