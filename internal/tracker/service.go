package tracker

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"math"
	"sort"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"rsi-tracker/internal/alert"
	"rsi-tracker/internal/logger"
	"rsi-tracker/internal/markethours"
	"rsi-tracker/internal/metrics"
	"rsi-tracker/internal/provider"
	"rsi-tracker/internal/signal"
)

// ServiceConfig tunes the monitor service.
type ServiceConfig struct {
	Interval       time.Duration // update cycle period (default 5m)
	MetricsEnabled bool
	MetricsAddr    string
	LedgerBackend  string // reported on /healthz
}

// Service runs the monitor loop: periodic symbol updates, status logging,
// metrics and health reporting, graceful shutdown with a final summary.
type Service struct {
	cfg        ServiceConfig
	fetcher    *provider.Fetcher
	tracker    *Tracker
	dispatcher *alert.Dispatcher

	prom   *metrics.Metrics
	health *metrics.HealthStatus

	// Optional ledger handles for liveness probing; nil when the memory
	// backend is in use.
	RedisClient *goredis.Client
	SQLiteDB    *sql.DB
}

// NewService wires the monitor service and hooks the tracker, fetcher and
// dispatcher into Prometheus.
func NewService(cfg ServiceConfig, fetcher *provider.Fetcher, tr *Tracker, dispatcher *alert.Dispatcher) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	svc := &Service{
		cfg:        cfg,
		fetcher:    fetcher,
		tracker:    tr,
		dispatcher: dispatcher,
		prom:       metrics.NewMetrics(),
		health:     metrics.NewHealthStatus(),
	}
	svc.health.SetLedgerBackend(cfg.LedgerBackend)
	svc.wireMetrics()
	return svc
}

func (svc *Service) wireMetrics() {
	prom := svc.prom

	svc.fetcher.OnFetch = func(name string, err error, dur time.Duration) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		prom.FetchesTotal.WithLabelValues(name, outcome).Inc()
		prom.FetchDur.Observe(dur.Seconds())
	}
	svc.fetcher.OnBreakerChange = func(name string, from, to provider.State) {
		prom.BreakerState.WithLabelValues(name).Set(float64(to))
		if to == provider.StateOpen {
			prom.BreakerTrips.WithLabelValues(name).Inc()
		}
	}

	svc.dispatcher.OnDelivered = func(signal.Signal) { prom.AlertsSent.Inc() }
	svc.dispatcher.OnSuppressed = func(signal.Signal) { prom.AlertsSuppressed.Inc() }
	svc.dispatcher.OnResult = func(channel string, err error) {
		if err != nil {
			prom.ChannelFailures.WithLabelValues(channel).Inc()
		}
	}

	svc.tracker.OnSignal = func(sig signal.Signal) {
		prom.SignalsTotal.WithLabelValues(string(sig.Type)).Inc()
	}
	svc.tracker.OnCompute = func(_ string, dur time.Duration) {
		prom.RSIComputeDur.Observe(dur.Seconds())
	}
	svc.tracker.OnHistoryOverflow = func(_ string) { prom.HistoryOverflow.Inc() }
}

// Run starts the monitor and blocks until ctx is cancelled. The first
// update cycle fires immediately, then every cfg.Interval.
func (svc *Service) Run(ctx context.Context) error {
	log.Printf("[monitor] starting RSI monitor, %d symbols, interval %s",
		svc.tracker.Len(), svc.cfg.Interval)

	// Provider connectivity probe
	probes := svc.fetcher.TestConnection(ctx)
	anyUp := false
	for name, ok := range probes {
		log.Printf("[monitor] provider %s: reachable=%v", name, ok)
		anyUp = anyUp || ok
	}
	svc.health.SetProvidersOK(anyUp)

	// Initial quote snapshot
	for symbol, q := range svc.fetcher.Quotes(ctx, svc.tracker.Symbols()) {
		log.Printf("[monitor] %s quote: %.2f (%+.2f%%)", symbol, q.Price, q.ChangePercent)
	}

	var metricsSrv *metrics.Server
	if svc.cfg.MetricsEnabled {
		metricsSrv = metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
		metricsSrv.Start()
		svc.health.StartLivenessChecker(ctx, svc.RedisClient, svc.SQLiteDB, 30*time.Second)
	}

	ticker := time.NewTicker(svc.cfg.Interval)
	defer ticker.Stop()

	svc.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			svc.shutdown(metricsSrv)
			return nil
		case <-ticker.C:
			svc.cycle(ctx)
		}
	}
}

// cycle runs one full update pass and logs the per-symbol status lines.
func (svc *Service) cycle(ctx context.Context) {
	now := time.Now()
	cctx := logger.WithTraceID(ctx, logger.GenerateTraceID("cycle", now))

	results := svc.tracker.UpdateAll(cctx)

	dur := time.Since(now)
	svc.prom.UpdateCycleDur.Observe(dur.Seconds())
	svc.prom.SymbolsTracked.Set(float64(svc.tracker.Len()))
	svc.health.SetLastUpdateTime(time.Now())
	svc.health.SetTrackedSymbols(svc.tracker.Len())
	svc.health.SetMarketOpen(markethours.IsMarketOpen(now))

	symbols := make([]string, 0, len(results))
	for s := range results {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		rsi := results[symbol]
		svc.prom.SymbolRSI.WithLabelValues(symbol).Set(rsi)
		log.Printf("[monitor] %s RSI %.1f %s", symbol, rsi, svc.trendArrow(symbol))
	}
	slog.Info("update cycle complete",
		append([]any{
			slog.Int("updated", len(results)),
			slog.Int("tracked", svc.tracker.Len()),
			slog.Duration("took", dur.Round(time.Millisecond)),
		}, logger.LogWithTrace(cctx)...)...)
}

// trendArrow compares the two most recent RSI samples for a symbol.
func (svc *Service) trendArrow(symbol string) string {
	hist := svc.tracker.History(symbol)
	if len(hist) < 2 {
		return ""
	}
	prev, curr := hist[len(hist)-2].RSI, hist[len(hist)-1].RSI
	switch {
	case math.IsNaN(prev) || math.IsNaN(curr):
		return ""
	case curr > prev:
		return "↑"
	case curr < prev:
		return "↓"
	}
	return "→"
}

// shutdown prints the final summary and alert statistics, then stops the
// metrics server.
func (svc *Service) shutdown(metricsSrv *metrics.Server) {
	log.Printf("[monitor] shutting down")

	summary := svc.tracker.Summary()
	log.Printf("[monitor] final summary: %d symbols (%d overbought, %d oversold, %d neutral, %d unknown)",
		summary.TotalSymbols,
		summary.ByStatus["overbought"], summary.ByStatus["oversold"],
		summary.ByStatus["neutral"], summary.ByStatus[StatusUnknown])
	for _, s := range summary.Symbols {
		if math.IsNaN(s.RSI) {
			log.Printf("[monitor]   %-10s %s", s.Symbol, s.Status)
			continue
		}
		log.Printf("[monitor]   %-10s RSI %.1f  %s  (updated %s)",
			s.Symbol, s.RSI, s.Status, s.LastUpdate.Format(time.RFC3339))
	}

	statsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stats, err := svc.dispatcher.Stats(statsCtx); err == nil {
		log.Printf("[monitor] alerts: %d recent (%d last hour, %d last 24h)",
			stats.TotalRecent, stats.LastHour, stats.Last24h)
	}

	if metricsSrv != nil {
		metricsSrv.Stop(statsCtx)
	}
}
