// Package config loads and validates widesky-ingest's configuration
// from environment variables. There is no config file: every setting
// has a documented default and can be overridden by an env var, read
// once at startup; changes require a restart.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// DBHost is the PostgreSQL host (and optional :port).
	DBHost string
	// DBName is the PostgreSQL database name.
	DBName string
	// DBUser is the PostgreSQL username.
	DBUser string
	// DBPass is the PostgreSQL password.
	DBPass string
	// ResetSchema drops all four tables before recreating them. A
	// development-time switch only — never set in production.
	ResetSchema bool

	// FirehoseURL is the upstream WebSocket endpoint.
	FirehoseURL string
	// PLCEndpoint is the directory HTTPS base URL.
	PLCEndpoint string

	// ProcessingWorkers is the number of decode/classify workers (N).
	ProcessingWorkers int
	// PersistenceWorkers is the number of batching/upsert workers (M).
	PersistenceWorkers int
	// ProcessingQueueSize bounds the raw-frame queue.
	ProcessingQueueSize int
	// PersistenceQueueSize bounds the typed-record queue.
	PersistenceQueueSize int

	// BatchSize is the per-kind flush threshold.
	BatchSize int
	// BatchTimeout is the per-kind flush latency bound.
	BatchTimeout time.Duration

	// LogDir is the directory for the rotating log file.
	LogDir string
	// MetricsAddr is the admin HTTP listen address (/healthz, /metrics).
	MetricsAddr string
}

// Load reads configuration from the environment, applying defaults for
// anything unset, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		DBHost:      getenv("PG_HOST", "db"),
		DBName:      getenv("PG_DB", "bluesky"),
		DBUser:      getenv("PG_USER", "postgres"),
		DBPass:      getenv("PG_PASS", "postgres"),
		ResetSchema: getenvBool("WIDESKY_RESET_SCHEMA", false),

		FirehoseURL: getenv("WIDESKY_FIREHOSE_URL", "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"),
		PLCEndpoint: getenv("WIDESKY_PLC_ENDPOINT", "https://plc.directory"),

		LogDir:      getenv("WIDESKY_LOG_DIR", "/app/logs"),
		MetricsAddr: getenv("WIDESKY_METRICS_ADDR", ":8213"),
	}

	var err error
	if cfg.ProcessingWorkers, err = getenvInt("WIDESKY_PROCESSING_WORKERS", 5); err != nil {
		return nil, err
	}
	if cfg.PersistenceWorkers, err = getenvInt("WIDESKY_PERSISTENCE_WORKERS", 5); err != nil {
		return nil, err
	}
	if cfg.ProcessingQueueSize, err = getenvInt("WIDESKY_PROCESSING_QUEUE_SIZE", 4000); err != nil {
		return nil, err
	}
	if cfg.PersistenceQueueSize, err = getenvInt("WIDESKY_PERSISTENCE_QUEUE_SIZE", 4000); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getenvInt("WIDESKY_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	batchTimeoutSecs, err := getenvInt("WIDESKY_BATCH_TIMEOUT_SECONDS", 3)
	if err != nil {
		return nil, err
	}
	cfg.BatchTimeout = time.Duration(batchTimeoutSecs) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required fields are present and sane.
func (c *Config) validate() error {
	switch {
	case c.DBHost == "":
		return fmt.Errorf("config: PG_HOST is required")
	case c.DBName == "":
		return fmt.Errorf("config: PG_DB is required")
	case c.DBUser == "":
		return fmt.Errorf("config: PG_USER is required")
	case c.ProcessingWorkers <= 0:
		return fmt.Errorf("config: WIDESKY_PROCESSING_WORKERS must be positive")
	case c.PersistenceWorkers <= 0:
		return fmt.Errorf("config: WIDESKY_PERSISTENCE_WORKERS must be positive")
	case c.BatchSize <= 0:
		return fmt.Errorf("config: WIDESKY_BATCH_SIZE must be positive")
	case c.BatchTimeout <= 0:
		return fmt.Errorf("config: WIDESKY_BATCH_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// ConnString builds a PostgreSQL connection URI from the config fields.
// The user and password are URL-encoded to handle special characters safely.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s@%s/%s?sslmode=disable",
		url.UserPassword(c.DBUser, c.DBPass).String(),
		c.DBHost,
		url.QueryEscape(c.DBName),
	)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}
