// Package config defines the top-level configuration for the triarb scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRIARB_* environment variables.
type Config struct {
	Scanner  ScannerConfig           `toml:"scanner"`
	Sources  map[string]SourceConfig `toml:"sources"`
	Redis    RedisConfig             `toml:"redis"`
	Postgres PostgresConfig          `toml:"postgres"`
	Server   ServerConfig            `toml:"server"`
	Notify   NotifyConfig            `toml:"notify"`
	Mode     string                  `toml:"mode"`
	LogLevel string                  `toml:"log_level"`
}

// ScannerConfig holds the cycle search and scan loop parameters.
type ScannerConfig struct {
	// Anchor is the currency every cycle starts and ends at.
	Anchor string `toml:"anchor"`
	// Origin is the source that trades the first and last leg of every cycle.
	Origin string `toml:"origin"`
	// Sources lists every participating source id. The origin is always
	// placed first by EffectiveSources, whether or not it is listed here.
	Sources        []string `toml:"sources"`
	MinCycle       int      `toml:"min_cycle"`
	MaxCycle       int      `toml:"max_cycle"`
	TransactionFee float64  `toml:"transaction_fee"`
	Period         duration `toml:"period"`
	WarmupPoll     duration `toml:"warmup_poll"`
	// WarmupTimeout marks the scanner degraded when the quote tables are still
	// empty after this long. Zero waits without reporting.
	WarmupTimeout duration `toml:"warmup_timeout"`
	// FiatReference is the currency whose directly quoted pairs are left out
	// of the graph. Empty disables the filter.
	FiatReference   string `toml:"fiat_reference"`
	ExcludeFiatLegs bool   `toml:"exclude_fiat_legs"`
}

// SourceConfig holds per-exchange endpoints and limits.
type SourceConfig struct {
	Disabled bool    `toml:"disabled"`
	RestURL  string  `toml:"rest_url"`
	WsURL    string  `toml:"ws_url"`
	FeeRate  float64 `toml:"fee_rate"`
	// MaxSymbols caps the number of streamed symbols. Zero streams all.
	MaxSymbols int `toml:"max_symbols"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	Channel      string `toml:"channel"`
	Stream       string `toml:"stream"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled        bool   `toml:"enabled"`
	DSN            string `toml:"dsn"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Database       string `toml:"database"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	SSLMode        string `toml:"ssl_mode"`
	PoolMaxConns   int    `toml:"pool_max_conns"`
	PoolMinConns   int    `toml:"pool_min_conns"`
	RunMigrations  bool   `toml:"run_migrations"`
	OnlyProfitable bool   `toml:"only_profitable"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "100ms", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Scanner: ScannerConfig{
			Anchor:          "USDT",
			Origin:          "kucoin",
			Sources:         []string{"kucoin", "coinbase", "binanceus"},
			MinCycle:        3,
			MaxCycle:        5,
			TransactionFee:  0.0057,
			Period:          duration{100 * time.Millisecond},
			WarmupPoll:      duration{time.Second},
			WarmupTimeout:   duration{0},
			FiatReference:   "USD",
			ExcludeFiatLegs: true,
		},
		Sources: map[string]SourceConfig{
			"binanceus": {
				RestURL: "https://api.binance.us",
				WsURL:   "wss://stream.binance.us:9443",
				FeeRate: 0.057,
			},
			"coinbase": {
				RestURL: "https://api.exchange.coinbase.com",
				WsURL:   "wss://ws-feed.exchange.coinbase.com",
				FeeRate: 0.06,
			},
			"kraken": {
				RestURL: "https://api.kraken.com",
				WsURL:   "wss://ws.kraken.com/v2",
				FeeRate: 0.075,
			},
			"kucoin": {
				RestURL: "https://api.kucoin.com",
				FeeRate: 0.01,
			},
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     20,
			MaxRetries:   3,
			TLSEnabled:   false,
			Channel:      "triarb:opportunities",
			Stream:       "triarb:reports",
			StreamMaxLen: 10_000,
		},
		Postgres: PostgresConfig{
			Enabled:        false,
			Host:           "localhost",
			Port:           5432,
			Database:       "postgres",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			RunMigrations:  true,
			OnlyProfitable: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events:   []string{"opportunity_found", "scanner_degraded", "error"},
			Cooldown: duration{30 * time.Second},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// EffectiveSources returns the participating source ids with the origin
// first and duplicates removed. Source order decides leg tie-breaks.
func (s ScannerConfig) EffectiveSources() []string {
	origin := s.OriginID()
	out := []string{origin}
	seen := map[string]bool{origin: true}
	for _, id := range s.Sources {
		id = normalizeID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// OriginID returns the origin source id in the same normalized form as
// EffectiveSources.
func (s ScannerConfig) OriginID() string {
	return normalizeID(s.Origin)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"cycles": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, cycles)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Scanner
	if strings.TrimSpace(c.Scanner.Anchor) == "" {
		errs = append(errs, "scanner: anchor must not be empty")
	}
	if strings.TrimSpace(c.Scanner.Origin) == "" {
		errs = append(errs, "scanner: origin must not be empty")
	}
	if c.Scanner.MinCycle < 3 {
		errs = append(errs, fmt.Sprintf("scanner: min_cycle must be >= 3, got %d", c.Scanner.MinCycle))
	}
	if c.Scanner.MaxCycle < c.Scanner.MinCycle {
		errs = append(errs, fmt.Sprintf("scanner: max_cycle (%d) must be >= min_cycle (%d)", c.Scanner.MaxCycle, c.Scanner.MinCycle))
	}
	if c.Scanner.TransactionFee < 0 || c.Scanner.TransactionFee >= 1 {
		errs = append(errs, fmt.Sprintf("scanner: transaction_fee must be in [0, 1), got %g", c.Scanner.TransactionFee))
	}
	if c.Scanner.Period.Duration <= 0 {
		errs = append(errs, "scanner: period must be > 0")
	}
	if c.Scanner.WarmupPoll.Duration <= 0 {
		errs = append(errs, "scanner: warmup_poll must be > 0")
	}
	if c.Scanner.WarmupTimeout.Duration < 0 {
		errs = append(errs, "scanner: warmup_timeout must be >= 0")
	}

	// Sources
	for _, id := range c.Scanner.EffectiveSources() {
		src, ok := c.Sources[id]
		if !ok {
			errs = append(errs, fmt.Sprintf("sources: %q is listed in scanner but has no [sources.%s] section", id, id))
			continue
		}
		if src.Disabled {
			errs = append(errs, fmt.Sprintf("sources: %q is listed in scanner but disabled", id))
		}
		if src.RestURL == "" {
			errs = append(errs, fmt.Sprintf("sources.%s: rest_url must not be empty", id))
		}
		if src.MaxSymbols < 0 {
			errs = append(errs, fmt.Sprintf("sources.%s: max_symbols must be >= 0", id))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.Channel == "" {
			errs = append(errs, "redis: channel must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
