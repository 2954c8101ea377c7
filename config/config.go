// Package config loads the tracker configuration from a YAML file with
// environment overrides and defaults for every key. A missing config file
// is not an error; defaults plus environment apply.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"rsi-tracker/internal/indicator"
	"rsi-tracker/internal/model"
	"rsi-tracker/internal/signal"
)

// Config is the full application configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	RSI        RSIConfig                 `mapstructure:"rsi"`
	Symbols    []string                  `mapstructure:"symbols"`
	Thresholds signal.Thresholds         `mapstructure:"thresholds"`
	Overrides  map[string]SymbolOverride `mapstructure:"symbol_overrides"`

	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// RSIConfig sets the indicator parameters shared by all commands.
type RSIConfig struct {
	Period           int    `mapstructure:"period"`
	Method           string `mapstructure:"method"`
	Timeframe        string `mapstructure:"timeframe"`
	HistoryLimit     int    `mapstructure:"history_limit"`
	DivergenceWindow int    `mapstructure:"divergence_window"`
}

// SymbolOverride carries per-symbol deviations from the global settings.
// Zero values mean "use the global setting".
type SymbolOverride struct {
	Overbought float64 `mapstructure:"overbought"`
	Oversold   float64 `mapstructure:"oversold"`
	Timeframe  string  `mapstructure:"timeframe"`
}

// MonitorConfig tunes the monitor loop.
type MonitorConfig struct {
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	Concurrency     int  `mapstructure:"concurrency"`
	MarketHoursOnly bool `mapstructure:"market_hours_only"`
}

// ProvidersConfig holds market data provider credentials.
type ProvidersConfig struct {
	AlphaVantageKey string `mapstructure:"alpha_vantage_key"`
}

// AlertsConfig configures the dispatcher and its channels.
type AlertsConfig struct {
	CooldownMinutes int            `mapstructure:"cooldown_minutes"`
	Email           EmailConfig    `mapstructure:"email"`
	SMS             SMSConfig      `mapstructure:"sms"`
	Webhook         WebhookConfig  `mapstructure:"webhook"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPServer string   `mapstructure:"smtp_server"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Recipients []string `mapstructure:"recipients"`
}

type SMSConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Provider   string   `mapstructure:"provider"`
	APIKey     string   `mapstructure:"api_key"`
	APISecret  string   `mapstructure:"api_secret"`
	FromNumber string   `mapstructure:"from_number"`
	Recipients []string `mapstructure:"recipients"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LedgerConfig selects and configures the cooldown ledger backend.
type LedgerConfig struct {
	Backend    string      `mapstructure:"backend"`
	SQLitePath string      `mapstructure:"sqlite_path"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MetricsConfig configures the /metrics and /healthz HTTP server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from path (or config.yaml in the working
// directory when path is empty), applies RSI_TRACKER_* environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("RSI_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("rsi.period", 14)
	v.SetDefault("rsi.method", "wilder")
	v.SetDefault("rsi.timeframe", "1d")
	v.SetDefault("rsi.history_limit", 100)
	v.SetDefault("rsi.divergence_window", 20)

	v.SetDefault("symbols", []string{"AAPL", "GOOGL", "MSFT", "TSLA", "BTC/USD"})
	v.SetDefault("thresholds.overbought", 70.0)
	v.SetDefault("thresholds.oversold", 30.0)

	v.SetDefault("monitor.interval_seconds", 300)
	v.SetDefault("monitor.concurrency", 4)
	v.SetDefault("monitor.market_hours_only", false)

	v.SetDefault("providers.alpha_vantage_key", "")

	// Credential keys need explicit defaults too: AutomaticEnv only
	// surfaces RSI_TRACKER_* overrides for keys viper already knows.
	v.SetDefault("alerts.cooldown_minutes", 60)
	v.SetDefault("alerts.email.enabled", false)
	v.SetDefault("alerts.email.smtp_server", "smtp.gmail.com")
	v.SetDefault("alerts.email.smtp_port", 587)
	v.SetDefault("alerts.email.username", "")
	v.SetDefault("alerts.email.password", "")
	v.SetDefault("alerts.email.recipients", []string{})
	v.SetDefault("alerts.sms.enabled", false)
	v.SetDefault("alerts.sms.provider", "twilio")
	v.SetDefault("alerts.sms.api_key", "")
	v.SetDefault("alerts.sms.api_secret", "")
	v.SetDefault("alerts.sms.from_number", "")
	v.SetDefault("alerts.sms.recipients", []string{})
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.telegram.enabled", false)
	v.SetDefault("alerts.telegram.bot_token", "")
	v.SetDefault("alerts.telegram.chat_id", "")

	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.sqlite_path", "rsi-tracker.db")
	v.SetDefault("ledger.redis.addr", "localhost:6379")
	v.SetDefault("ledger.redis.password", "")
	v.SetDefault("ledger.redis.db", 0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9109")
}

// Validate rejects settings the rest of the system would otherwise choke
// on at runtime. Overlapping thresholds are an error here, not a silent
// fix-up later.
func (c *Config) Validate() error {
	if c.RSI.Period < 1 {
		return fmt.Errorf("config: rsi.period must be at least 1, got %d", c.RSI.Period)
	}
	if _, err := indicator.ParseMethod(c.RSI.Method); err != nil {
		return fmt.Errorf("config: rsi.method: %w", err)
	}
	if !model.ValidTimeframe(c.RSI.Timeframe) {
		return fmt.Errorf("config: rsi.timeframe %q not in %v", c.RSI.Timeframe, model.Timeframes)
	}
	if c.RSI.HistoryLimit < c.RSI.Period+1 {
		return fmt.Errorf("config: rsi.history_limit %d too small for period %d (need at least %d)",
			c.RSI.HistoryLimit, c.RSI.Period, c.RSI.Period+1)
	}
	if c.RSI.DivergenceWindow < 1 {
		return fmt.Errorf("config: rsi.divergence_window must be at least 1, got %d", c.RSI.DivergenceWindow)
	}

	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("config: thresholds: %w", err)
	}
	for sym, ov := range c.Overrides {
		if err := c.ThresholdsFor(sym).Validate(); err != nil {
			return fmt.Errorf("config: symbol_overrides.%s: %w", sym, err)
		}
		if ov.Timeframe != "" && !model.ValidTimeframe(ov.Timeframe) {
			return fmt.Errorf("config: symbol_overrides.%s: timeframe %q not in %v",
				sym, ov.Timeframe, model.Timeframes)
		}
	}

	if c.Monitor.IntervalSeconds < 1 {
		return fmt.Errorf("config: monitor.interval_seconds must be at least 1, got %d", c.Monitor.IntervalSeconds)
	}
	if c.Monitor.Concurrency < 1 {
		return fmt.Errorf("config: monitor.concurrency must be at least 1, got %d", c.Monitor.Concurrency)
	}

	if c.Alerts.CooldownMinutes < 1 {
		return fmt.Errorf("config: alerts.cooldown_minutes must be at least 1, got %d", c.Alerts.CooldownMinutes)
	}

	switch c.Ledger.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("config: ledger.backend %q not one of memory, sqlite, redis", c.Ledger.Backend)
	}
	return nil
}

// ThresholdsFor returns the effective thresholds for a symbol: the global
// bounds with any per-symbol override applied on top.
func (c *Config) ThresholdsFor(symbol string) signal.Thresholds {
	th := c.Thresholds
	if ov, ok := c.Overrides[symbol]; ok {
		if ov.Overbought != 0 {
			th.Overbought = ov.Overbought
		}
		if ov.Oversold != 0 {
			th.Oversold = ov.Oversold
		}
	}
	return th
}

// TimeframeFor returns the effective timeframe for a symbol.
func (c *Config) TimeframeFor(symbol string) string {
	if ov, ok := c.Overrides[symbol]; ok && ov.Timeframe != "" {
		return ov.Timeframe
	}
	return c.RSI.Timeframe
}
