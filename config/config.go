// Package config loads the alerting engine's process configuration:
// flags with environment-variable fallback, exactly the shape of the
// teacher's cmd/semstreams/flags.go (getEnv/getEnvBool/getEnvInt/
// getEnvDuration), generalized into an importable package rather than
// left as package-main globals, since both cmd/alertengine and tests
// need to load it.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration of §6: bootstrap flags
// (SkipInitData, DataDir, Keyspace) plus the engine tuning knobs the
// distilled spec left to "reasonable defaults" — batch size, action
// sink sizing, and the admin cross-tenant fetch timeout (§4.6, §5).
type Config struct {
	// SkipInitData suppresses bootstrap JSON loading, for a node
	// joining an already-populated cluster (§6).
	SkipInitData bool
	// DataDir is the bootstrap JSON source directory (§6).
	DataDir string
	// Keyspace namespaces the Definitions Store (§6).
	Keyspace string

	// NATSURL is the Data Source / Definitions Store change-watch
	// transport address.
	NATSURL string

	// BatchSize is a tuning value loaded with the rest of Config. No
	// other package reads it: Ingest processes each batch at whatever
	// size its caller passes.
	BatchSize int
	// ActionQueueSize is the Action Sink's bounded queue depth (§9).
	ActionQueueSize int
	// ActionWorkers is the Action Sink's worker pool size (§9).
	ActionWorkers int
	// AdminFetchTimeout bounds each of engine.Engine's admin cross-tenant
	// fetches (§4.6, §5); spec default is one minute.
	AdminFetchTimeout time.Duration

	// LiveFeedAddr is the admin websocket live-feed listen address, empty
	// disables it.
	LiveFeedAddr string
	// MetricsAddr is the Prometheus /metrics listen address, empty
	// disables it.
	MetricsAddr string

	LogLevel  string
	LogFormat string
}

// Load parses args (normally os.Args[1:]) against fs, with every flag
// defaulting to its environment variable's value when unset on the
// command line, then validates the result.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.BoolVar(&cfg.SkipInitData, "skip-init-data",
		getEnvBool("ALERTENGINE_SKIP_INIT_DATA", false),
		"suppress bootstrap JSON loading (env: ALERTENGINE_SKIP_INIT_DATA)")
	fs.StringVar(&cfg.DataDir, "data-dir",
		getEnv("ALERTENGINE_DATA_DIR", "./data"),
		"bootstrap JSON source directory (env: ALERTENGINE_DATA_DIR)")
	fs.StringVar(&cfg.Keyspace, "keyspace",
		getEnv("ALERTENGINE_KEYSPACE", "default"),
		"Definitions Store keyspace (env: ALERTENGINE_KEYSPACE)")
	fs.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("ALERTENGINE_NATS_URL", "nats://127.0.0.1:4222"),
		"NATS server URL (env: ALERTENGINE_NATS_URL)")
	fs.IntVar(&cfg.BatchSize, "batch-size",
		getEnvInt("ALERTENGINE_BATCH_SIZE", 100),
		"Data items per Ingest batch (env: ALERTENGINE_BATCH_SIZE)")
	fs.IntVar(&cfg.ActionQueueSize, "action-queue-size",
		getEnvInt("ALERTENGINE_ACTION_QUEUE_SIZE", 1000),
		"Action Sink queue depth (env: ALERTENGINE_ACTION_QUEUE_SIZE)")
	fs.IntVar(&cfg.ActionWorkers, "action-workers",
		getEnvInt("ALERTENGINE_ACTION_WORKERS", 10),
		"Action Sink worker count (env: ALERTENGINE_ACTION_WORKERS)")
	fs.DurationVar(&cfg.AdminFetchTimeout, "admin-fetch-timeout",
		getEnvDuration("ALERTENGINE_ADMIN_FETCH_TIMEOUT", time.Minute),
		"admin cross-tenant fetch timeout (env: ALERTENGINE_ADMIN_FETCH_TIMEOUT)")
	fs.StringVar(&cfg.LiveFeedAddr, "livefeed-addr",
		getEnv("ALERTENGINE_LIVEFEED_ADDR", ":8090"),
		"admin live-feed listen address, empty disables it (env: ALERTENGINE_LIVEFEED_ADDR)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("ALERTENGINE_METRICS_ADDR", ":9090"),
		"Prometheus /metrics listen address, empty disables it (env: ALERTENGINE_METRICS_ADDR)")
	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("ALERTENGINE_LOG_LEVEL", "info"),
		"log level: debug, info, warn, error (env: ALERTENGINE_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("ALERTENGINE_LOG_FORMAT", "json"),
		"log format: json, text (env: ALERTENGINE_LOG_FORMAT)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.ActionQueueSize <= 0 {
		return fmt.Errorf("action-queue-size must be positive, got %d", cfg.ActionQueueSize)
	}
	if cfg.ActionWorkers <= 0 {
		return fmt.Errorf("action-workers must be positive, got %d", cfg.ActionWorkers)
	}
	if cfg.AdminFetchTimeout <= 0 {
		return fmt.Errorf("admin-fetch-timeout must be positive, got %s", cfg.AdminFetchTimeout)
	}
	if cfg.Keyspace == "" {
		return fmt.Errorf("keyspace must not be empty")
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
