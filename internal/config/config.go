// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the monitoring
// vocabulary, poll cadence, vendor credentials, logging, and observability
// settings consumed by the rest of the module.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// FeedConfig holds the vendor account credentials the coordinator starts
// from. RefreshToken takes precedence over username/password when present.
type FeedConfig struct {
	Username     string // FEED_USERNAME
	Password     string // FEED_PASSWORD
	RefreshToken string // FEED_REFRESH_TOKEN (preferred; from a prior login)
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Monitoring
	PollInterval time.Duration // POLL_INTERVAL_SECONDS, >= 1s
	Keywords     []string      // MONITOR_KEYWORDS, comma-separated, lowered on load
	Emojis       []string      // MONITOR_EMOJIS, comma-separated, kept verbatim

	// Vendor account
	Feed FeedConfig

	// Token persistence
	DBPath string // SQLite path for the refresh-token store

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
// A .env file in the working directory is honored when present.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Monitoring
		PollInterval: time.Duration(getint("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		Keywords:     lowerAll(splitCSV(getenv("MONITOR_KEYWORDS", ""))),
		Emojis:       splitCSV(getenv("MONITOR_EMOJIS", "")),

		// Vendor account
		Feed: FeedConfig{
			Username:     getenv("FEED_USERNAME", ""),
			Password:     getenv("FEED_PASSWORD", ""),
			RefreshToken: getenv("FEED_REFRESH_TOKEN", ""),
		},

		// Token persistence
		DBPath: getenv("DB_PATH", "watch.db"),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-neighborhood-watch"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.PollInterval < time.Second {
		return cfg, errors.New("POLL_INTERVAL_SECONDS must be >= 1")
	}
	if len(cfg.Keywords) == 0 && len(cfg.Emojis) == 0 {
		return cfg, errors.New("MONITOR_KEYWORDS or MONITOR_EMOJIS must configure at least one term")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	for i, s := range in {
		in[i] = strings.ToLower(s)
	}
	return in
}
