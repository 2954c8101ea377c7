// Command rsitracker computes RSI over market data, detects divergences
// and dispatches threshold alerts.
//
//	rsitracker analyze SYMBOL [flags]   one-shot RSI analysis
//	rsitracker monitor [flags]          periodic tracking with alerts
//	rsitracker test-alerts [flags]      probe the notification channels
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"rsi-tracker/config"
	"rsi-tracker/internal/alert"
	"rsi-tracker/internal/divergence"
	"rsi-tracker/internal/indicator"
	"rsi-tracker/internal/logger"
	"rsi-tracker/internal/notification"
	"rsi-tracker/internal/provider"
	redisstore "rsi-tracker/internal/store/redis"
	sqlitestore "rsi-tracker/internal/store/sqlite"
	"rsi-tracker/internal/tracker"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "monitor":
		err = runMonitor(os.Args[2:])
	case "test-alerts":
		err = runTestAlerts(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "rsitracker: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Printf("[rsitracker] %v", err)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: rsitracker <command> [flags]

Commands:
  analyze SYMBOL   fetch history, compute RSI, report signal and divergences
  monitor          track configured symbols, dispatch threshold alerts
  test-alerts      send a canned alert through every enabled channel

Common flags:
  -config path     config file (default: config.yaml in the working dir)
  -v               verbose (debug) logging

Run "rsitracker <command> -h" for command flags.
`)
}

// loadConfig loads the config file and initializes logging.
func loadConfig(path string, verbose bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := parseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger.Init("rsitracker", level)
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// ────────────────────────────────────────────────────────────
// analyze
// ────────────────────────────────────────────────────────────

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "config file path")
		verbose    = fs.Bool("v", false, "debug logging")
		timeframe  = fs.String("t", "", "timeframe (1m 5m 15m 1h 4h 1d)")
		period     = fs.Int("p", 0, "RSI period")
		method     = fs.String("m", "", "RSI method (wilder or sma)")
		window     = fs.Int("w", 0, "divergence extremum window")
		limit      = fs.Int("l", 0, "number of candles to fetch")
	)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rsitracker analyze SYMBOL [flags]")
		os.Exit(1)
	}
	symbol := fs.Arg(0)

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	// Flags override config; unset flags fall back to the config values.
	if *timeframe == "" {
		*timeframe = cfg.TimeframeFor(symbol)
	}
	if *period == 0 {
		*period = cfg.RSI.Period
	}
	if *method == "" {
		*method = cfg.RSI.Method
	}
	if *window == 0 {
		*window = cfg.RSI.DivergenceWindow
	}
	if *limit == 0 {
		*limit = cfg.RSI.HistoryLimit
	}
	m, err := indicator.ParseMethod(*method)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fetcher := provider.NewFetcher(provider.FetcherConfig{
		AlphaVantageKey: cfg.Providers.AlphaVantageKey,
	})

	series, err := fetcher.Historical(ctx, symbol, *timeframe, *limit)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}

	closes := series.Closes()
	values, err := indicator.Compute(m, closes, *period)
	if err != nil {
		return fmt.Errorf("rsi %s: %w", symbol, err)
	}

	fmt.Printf("\n%s (%s, %d candles, period %d, %s)\n", symbol, *timeframe, len(series), *period, m)
	fmt.Println(strings.Repeat("-", 50))

	last := values[len(values)-1]
	if math.IsNaN(last) {
		fmt.Println("RSI:     undefined (flat price window)")
	} else {
		th := cfg.ThresholdsFor(symbol)
		fmt.Printf("RSI:     %.2f\n", last)
		fmt.Printf("Signal:  %s (thresholds %g/%g)\n", th.Classify(last), th.Overbought, th.Oversold)
	}
	fmt.Printf("Close:   %.2f\n", series.Last().Close)

	if quote, err := fetcher.Quote(ctx, symbol); err == nil {
		fmt.Printf("Quote:   %.2f (%+.2f, %+.2f%%)\n", quote.Price, quote.Change, quote.ChangePercent)
	}

	result := divergence.Detect(closes, values, *window)
	fmt.Printf("\nDivergences (window %d):\n", *window)
	if len(result.Bullish) == 0 && len(result.Bearish) == 0 {
		fmt.Println("  none")
	}
	for _, p := range result.Bullish {
		fmt.Printf("  bullish  idx=%-4d price=%.2f rsi=%.2f  %s\n",
			p.Index, p.Price, p.RSI, series[p.Index].Time.Format("2006-01-02 15:04"))
	}
	for _, p := range result.Bearish {
		fmt.Printf("  bearish  idx=%-4d price=%.2f rsi=%.2f  %s\n",
			p.Index, p.Price, p.RSI, series[p.Index].Time.Format("2006-01-02 15:04"))
	}
	return nil
}

// ────────────────────────────────────────────────────────────
// monitor
// ────────────────────────────────────────────────────────────

func runMonitor(args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "config file path")
		verbose    = fs.Bool("v", false, "debug logging")
		symbolsCSV = fs.String("s", "", "comma-separated symbols (default: config)")
		interval   = fs.Int("i", 0, "update interval in seconds (default: config)")
	)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	symbols := cfg.Symbols
	if *symbolsCSV != "" {
		symbols = splitSymbols(*symbolsCSV)
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "monitor: no symbols configured")
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Monitor.IntervalSeconds = *interval
	}

	fetcher := provider.NewFetcher(provider.FetcherConfig{
		AlphaVantageKey: cfg.Providers.AlphaVantageKey,
	})

	dispatcher, ledgerCleanup, rdb, sqlDB, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer ledgerCleanup()

	method, _ := indicator.ParseMethod(cfg.RSI.Method) // validated at load
	tr := tracker.New(fetcher, dispatcher, tracker.Options{
		Period:          cfg.RSI.Period,
		Method:          method,
		HistoryLimit:    cfg.RSI.HistoryLimit,
		Concurrency:     cfg.Monitor.Concurrency,
		MarketHoursOnly: cfg.Monitor.MarketHoursOnly,
	})
	for _, symbol := range symbols {
		if err := tr.Add(symbol, cfg.TimeframeFor(symbol), cfg.ThresholdsFor(symbol)); err != nil {
			return fmt.Errorf("track %s: %w", symbol, err)
		}
	}

	svc := tracker.NewService(tracker.ServiceConfig{
		Interval:       time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsAddr:    cfg.Metrics.Addr,
		LedgerBackend:  cfg.Ledger.Backend,
	}, fetcher, tr, dispatcher)
	svc.RedisClient = rdb
	svc.SQLiteDB = sqlDB

	ctx, cancel := signalContext()
	defer cancel()
	return svc.Run(ctx)
}

func splitSymbols(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// buildDispatcher assembles the notification channels, the cooldown ledger
// backend and the dispatcher from config. The returned cleanup closes the
// ledger; the redis/sqlite handles (nil for the memory backend) feed the
// health prober.
func buildDispatcher(cfg *config.Config) (*alert.Dispatcher, func(), *goredis.Client, *sql.DB, error) {
	channels := notification.Build(notification.Options{
		EmailEnabled:    cfg.Alerts.Email.Enabled,
		SMTPServer:      cfg.Alerts.Email.SMTPServer,
		SMTPPort:        cfg.Alerts.Email.SMTPPort,
		EmailUsername:   cfg.Alerts.Email.Username,
		EmailPassword:   cfg.Alerts.Email.Password,
		EmailRecipients: cfg.Alerts.Email.Recipients,

		SMSEnabled:    cfg.Alerts.SMS.Enabled,
		SMSAPIKey:     cfg.Alerts.SMS.APIKey,
		SMSAPISecret:  cfg.Alerts.SMS.APISecret,
		SMSFromNumber: cfg.Alerts.SMS.FromNumber,
		SMSRecipients: cfg.Alerts.SMS.Recipients,

		WebhookEnabled: cfg.Alerts.Webhook.Enabled,
		WebhookURL:     cfg.Alerts.Webhook.URL,

		TelegramEnabled:  cfg.Alerts.Telegram.Enabled,
		TelegramBotToken: cfg.Alerts.Telegram.BotToken,
		TelegramChatID:   cfg.Alerts.Telegram.ChatID,
	})

	var (
		ledger  alert.Ledger
		cleanup = func() {}
		rdb     *goredis.Client
		sqlDB   *sql.DB
	)
	switch cfg.Ledger.Backend {
	case "sqlite":
		l, err := sqlitestore.NewLedger(cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("ledger: %w", err)
		}
		ledger, cleanup, sqlDB = l, func() { l.Close() }, l.DB()
	case "redis":
		l, err := redisstore.NewLedger(redisstore.Config{
			Addr:     cfg.Ledger.Redis.Addr,
			Password: cfg.Ledger.Redis.Password,
			DB:       cfg.Ledger.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("ledger: %w", err)
		}
		ledger, cleanup, rdb = l, func() { l.Close() }, l.Client()
	default:
		ledger = alert.NewMemoryLedger()
	}

	cooldown := time.Duration(cfg.Alerts.CooldownMinutes) * time.Minute
	return alert.NewDispatcher(channels, ledger, cooldown), cleanup, rdb, sqlDB, nil
}

// ────────────────────────────────────────────────────────────
// test-alerts
// ────────────────────────────────────────────────────────────

func runTestAlerts(args []string) error {
	fs := flag.NewFlagSet("test-alerts", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "config file path")
		verbose    = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	dispatcher, cleanup, _, _, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := dispatcher.TestChannels(ctx)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nChannel test results:")
	allOK := true
	for _, name := range names {
		status := "OK"
		if !results[name] {
			status = "FAILED"
			allOK = false
		}
		fmt.Printf("  %-10s %s\n", name, status)
	}
	if len(results) == 1 && results["log"] {
		fmt.Println("\nOnly the log channel is active. Enable email, sms, webhook")
		fmt.Println("or telegram in the config to deliver alerts externally.")
	}
	if !allOK {
		return fmt.Errorf("one or more channels failed")
	}
	return nil
}
