package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRIARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	fillSourceDefaults(&cfg)

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// fillSourceDefaults restores built-in endpoints for known sources whose
// [sources.<id>] table only overrides some fields. The TOML decoder replaces
// map values wholesale, so unset fields would otherwise be zero.
func fillSourceDefaults(cfg *Config) {
	defaults := Defaults().Sources
	for id, src := range cfg.Sources {
		def, ok := defaults[id]
		if !ok {
			continue
		}
		if src.RestURL == "" {
			src.RestURL = def.RestURL
		}
		if src.WsURL == "" {
			src.WsURL = def.WsURL
		}
		if src.FeeRate == 0 {
			src.FeeRate = def.FeeRate
		}
		cfg.Sources[id] = src
	}
}

// applyEnvOverrides reads well-known TRIARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Scanner ──
	setStr(&cfg.Scanner.Anchor, "TRIARB_SCANNER_ANCHOR")
	setStr(&cfg.Scanner.Origin, "TRIARB_SCANNER_ORIGIN")
	setStringSlice(&cfg.Scanner.Sources, "TRIARB_SCANNER_SOURCES")
	setInt(&cfg.Scanner.MinCycle, "TRIARB_SCANNER_MIN_CYCLE")
	setInt(&cfg.Scanner.MaxCycle, "TRIARB_SCANNER_MAX_CYCLE")
	setFloat64(&cfg.Scanner.TransactionFee, "TRIARB_SCANNER_TRANSACTION_FEE")
	setDuration(&cfg.Scanner.Period, "TRIARB_SCANNER_PERIOD")
	setDuration(&cfg.Scanner.WarmupPoll, "TRIARB_SCANNER_WARMUP_POLL")
	setDuration(&cfg.Scanner.WarmupTimeout, "TRIARB_SCANNER_WARMUP_TIMEOUT")
	setStr(&cfg.Scanner.FiatReference, "TRIARB_SCANNER_FIAT_REFERENCE")
	setBool(&cfg.Scanner.ExcludeFiatLegs, "TRIARB_SCANNER_EXCLUDE_FIAT_LEGS")

	// ── Sources ──
	for id, src := range cfg.Sources {
		prefix := "TRIARB_SOURCES_" + strings.ToUpper(id) + "_"
		setBool(&src.Disabled, prefix+"DISABLED")
		setStr(&src.RestURL, prefix+"REST_URL")
		setStr(&src.WsURL, prefix+"WS_URL")
		setFloat64(&src.FeeRate, prefix+"FEE_RATE")
		setInt(&src.MaxSymbols, prefix+"MAX_SYMBOLS")
		cfg.Sources[id] = src
	}

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRIARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRIARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TRIARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRIARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRIARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRIARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRIARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRIARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRIARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRIARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRIARB_POSTGRES_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.OnlyProfitable, "TRIARB_POSTGRES_ONLY_PROFITABLE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRIARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRIARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRIARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRIARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRIARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRIARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRIARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Channel, "TRIARB_REDIS_CHANNEL")
	setStr(&cfg.Redis.Stream, "TRIARB_REDIS_STREAM")
	setInt64(&cfg.Redis.StreamMaxLen, "TRIARB_REDIS_STREAM_MAX_LEN")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRIARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRIARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRIARB_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRIARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRIARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRIARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRIARB_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "TRIARB_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRIARB_MODE")
	setStr(&cfg.LogLevel, "TRIARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
