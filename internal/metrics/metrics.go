package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the RSI tracker.
type Metrics struct {
	FetchesTotal *prometheus.CounterVec // labels: provider, outcome
	FetchDur     prometheus.Histogram

	// Indicator pipeline metrics
	RSIComputeDur prometheus.Histogram
	SignalsTotal  *prometheus.CounterVec // labels: type

	// Alert dispatch metrics
	AlertsSent       prometheus.Counter
	AlertsSuppressed prometheus.Counter
	ChannelFailures  *prometheus.CounterVec // labels: channel

	// Provider circuit breaker metrics
	BreakerState *prometheus.GaugeVec // labels: provider; 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec

	// Monitor loop metrics
	SymbolsTracked  prometheus.Gauge
	SymbolRSI       *prometheus.GaugeVec // labels: symbol
	UpdateCycleDur  prometheus.Histogram
	HistoryOverflow prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsitracker_fetches_total",
			Help: "Total market data fetches by provider and outcome",
		}, []string{"provider", "outcome"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsitracker_fetch_duration_seconds",
			Help:    "Market data fetch latency",
			Buckets: prometheus.DefBuckets,
		}),

		// Indicator pipeline
		RSIComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsitracker_rsi_compute_duration_seconds",
			Help:    "RSI series compute latency per symbol",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsitracker_signals_total",
			Help: "Total signals classified (by type)",
		}, []string{"type"}),

		// Alert dispatch
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsitracker_alerts_sent_total",
			Help: "Alerts delivered to at least one channel",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsitracker_alerts_suppressed_total",
			Help: "Alerts suppressed by the cooldown window",
		}),
		ChannelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsitracker_channel_failures_total",
			Help: "Notification channel send failures",
		}, []string{"channel"}),

		// Circuit breaker
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsitracker_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsitracker_breaker_trips_total",
			Help: "Times a provider circuit breaker tripped open",
		}, []string{"provider"}),

		// Monitor loop
		SymbolsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsitracker_symbols_tracked",
			Help: "Number of symbols currently tracked",
		}),
		SymbolRSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsitracker_symbol_rsi",
			Help: "Latest RSI value per tracked symbol",
		}, []string{"symbol"}),
		UpdateCycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsitracker_update_cycle_duration_seconds",
			Help:    "Wall time of a full monitor update cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}),
		HistoryOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsitracker_history_overflow_total",
			Help: "RSI history ring overwrites (oldest sample evicted)",
		}),
	}

	prometheus.MustRegister(
		m.FetchesTotal,
		m.FetchDur,
		m.RSIComputeDur,
		m.SignalsTotal,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.ChannelFailures,
		m.BreakerState,
		m.BreakerTrips,
		m.SymbolsTracked,
		m.SymbolRSI,
		m.UpdateCycleDur,
		m.HistoryOverflow,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	ProvidersOK    bool      `json:"providers_ok"`
	LastUpdateTime time.Time `json:"last_update_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LedgerBackend  string    `json:"ledger_backend"`
	TrackedSymbols int       `json:"tracked_symbols"`
	MarketOpen     bool      `json:"market_open"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetProvidersOK(v bool) {
	h.mu.Lock()
	h.ProvidersOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastUpdateTime(t time.Time) {
	h.mu.Lock()
	h.LastUpdateTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLedgerBackend(name string) {
	h.mu.Lock()
	h.LedgerBackend = name
	h.mu.Unlock()
}

func (h *HealthStatus) SetTrackedSymbols(n int) {
	h.mu.Lock()
	h.TrackedSymbols = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Only the backend the ledger actually runs on counts toward health.
	ledgerOK := true
	switch h.LedgerBackend {
	case "redis":
		ledgerOK = h.RedisConnected
	case "sqlite":
		ledgerOK = h.SQLiteOK
	}

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.ProvidersOK || !ledgerOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.ProvidersOK && !ledgerOK {
		overallStatus = "unhealthy"
	}

	// Update age
	updateAge := ""
	if !h.LastUpdateTime.IsZero() {
		updateAge = time.Since(h.LastUpdateTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		ProvidersOK     bool    `json:"providers_ok"`
		LastUpdateTime  string  `json:"last_update_time"`
		UpdateAge       string  `json:"update_age"`
		LedgerBackend   string  `json:"ledger_backend"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		TrackedSymbols  int     `json:"tracked_symbols"`
		MarketOpen      bool    `json:"market_open"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		ProvidersOK:     h.ProvidersOK,
		LastUpdateTime:  h.LastUpdateTime.Format(time.RFC3339),
		UpdateAge:       updateAge,
		LedgerBackend:   h.LedgerBackend,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		TrackedSymbols:  h.TrackedSymbols,
		MarketOpen:      h.MarketOpen,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
