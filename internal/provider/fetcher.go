package provider

import (
	"context"
	"log"
	"strings"
	"time"

	"rsi-tracker/internal/model"
)

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 60 * time.Second
)

// FetcherConfig configures the routing fetcher.
type FetcherConfig struct {
	AlphaVantageKey string // enables the stock fallback when non-empty

	// Circuit breaker tuning; zero values fall back to defaults.
	MaxFailures  int
	ResetTimeout time.Duration
}

// Fetcher routes each symbol to the right provider and shields every
// upstream behind its own circuit breaker.
type Fetcher struct {
	stocks   Provider
	fallback Provider // nil unless an Alpha Vantage key is configured
	crypto   Provider
	breakers map[string]*Breaker

	// Callbacks (optional). OnBreakerChange observes breaker transitions,
	// OnFetch the outcome and latency of every provider call.
	OnBreakerChange func(provider string, from, to State)
	OnFetch         func(provider string, err error, dur time.Duration)
}

// NewFetcher creates a fetcher over the default providers: Yahoo for
// stocks with an optional Alpha Vantage fallback, Binance for crypto.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	var fallback Provider
	if cfg.AlphaVantageKey != "" {
		fallback = NewAlphaVantage(cfg.AlphaVantageKey)
	}
	return newFetcher(NewYahoo(), fallback, NewBinance(), cfg)
}

func newFetcher(stocks, fallback, crypto Provider, cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		stocks:   stocks,
		fallback: fallback,
		crypto:   crypto,
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = defaultResetTimeout
	}

	f.breakers = make(map[string]*Breaker)
	for _, p := range []Provider{f.stocks, f.fallback, f.crypto} {
		if p == nil {
			continue
		}
		name := p.Name()
		br := NewBreaker(maxFailures, resetTimeout)
		br.OnStateChange = func(from, to State) {
			log.Printf("[fetcher] %s breaker %s -> %s", name, from, to)
			if f.OnBreakerChange != nil {
				f.OnBreakerChange(name, from, to)
			}
		}
		f.breakers[name] = br
	}
	return f
}

// IsCrypto reports whether the symbol routes to the crypto provider:
// slash pairs ("BTC/USD") and bare pairs quoted in USDT, BTC or ETH.
func IsCrypto(symbol string) bool {
	if strings.Contains(symbol, "/") {
		return true
	}
	up := strings.ToUpper(symbol)
	return strings.HasSuffix(up, "USDT") ||
		strings.HasSuffix(up, "BTC") ||
		strings.HasSuffix(up, "ETH")
}

// Historical fetches candles for the symbol, falling back to Alpha
// Vantage when the primary stock provider fails and a key is configured.
func (f *Fetcher) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	if IsCrypto(symbol) {
		return f.historicalVia(ctx, f.crypto, symbol, timeframe, limit)
	}

	series, err := f.historicalVia(ctx, f.stocks, symbol, timeframe, limit)
	if err != nil && f.fallback != nil {
		log.Printf("[fetcher] %s failed for %s: %v (falling back to %s)",
			f.stocks.Name(), symbol, err, f.fallback.Name())
		return f.historicalVia(ctx, f.fallback, symbol, timeframe, limit)
	}
	return series, err
}

// Quote fetches the current quote for the symbol with the same routing
// as Historical.
func (f *Fetcher) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if IsCrypto(symbol) {
		return f.quoteVia(ctx, f.crypto, symbol)
	}

	quote, err := f.quoteVia(ctx, f.stocks, symbol)
	if err != nil && f.fallback != nil {
		return f.quoteVia(ctx, f.fallback, symbol)
	}
	return quote, err
}

// Quotes fetches quotes for multiple symbols, skipping the ones that
// fail.
func (f *Fetcher) Quotes(ctx context.Context, symbols []string) map[string]model.Quote {
	results := make(map[string]model.Quote, len(symbols))
	for _, symbol := range symbols {
		quote, err := f.Quote(ctx, symbol)
		if err != nil {
			log.Printf("[fetcher] quote for %s failed: %v", symbol, err)
			continue
		}
		results[symbol] = quote
	}
	return results
}

// TestConnection probes every configured provider with a known symbol
// and reports per-provider reachability. Probes bypass the breakers.
func (f *Fetcher) TestConnection(ctx context.Context) map[string]bool {
	results := make(map[string]bool)

	_, err := f.stocks.Quote(ctx, "AAPL")
	results[f.stocks.Name()] = err == nil

	if f.fallback != nil {
		_, err = f.fallback.Quote(ctx, "AAPL")
		results[f.fallback.Name()] = err == nil
	}

	_, err = f.crypto.Quote(ctx, "BTC/USD")
	results[f.crypto.Name()] = err == nil

	return results
}

func (f *Fetcher) historicalVia(ctx context.Context, p Provider, symbol, timeframe string, limit int) (model.Series, error) {
	var series model.Series
	start := time.Now()
	err := f.breakers[p.Name()].Execute(func() error {
		var err error
		series, err = p.Historical(ctx, symbol, timeframe, limit)
		return err
	})
	if f.OnFetch != nil {
		f.OnFetch(p.Name(), err, time.Since(start))
	}
	return series, err
}

func (f *Fetcher) quoteVia(ctx context.Context, p Provider, symbol string) (model.Quote, error) {
	var quote model.Quote
	start := time.Now()
	err := f.breakers[p.Name()].Execute(func() error {
		var err error
		quote, err = p.Quote(ctx, symbol)
		return err
	})
	if f.OnFetch != nil {
		f.OnFetch(p.Name(), err, time.Since(start))
	}
	return quote, err
}
