package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the page editing service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// PublicBaseURL is the externally reachable origin used to build
	// published page URLs, e.g. https://pages.example.com.
	PublicBaseURL string

	MutationMode       string
	MutationServiceURL string
	MutationTimeout    time.Duration

	// PersistBaseURL points at an external save/publish service. Empty means
	// saves and publishes go straight to the page store in this process.
	PersistBaseURL string

	AutosaveDebounce  time.Duration
	HistoryByteBudget int64

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "pageforge"),
		AllowAnyOrigin:     false,
		PublicBaseURL:      envOrDefault("APP_PUBLIC_BASE_URL", "http://localhost:8080"),
		MutationMode:       envOrDefault("MUTATION_ADAPTER_MODE", "auto"),
		MutationServiceURL: envTrimmed("MUTATION_SERVICE_URL"),
		PersistBaseURL:     envTrimmed("PERSIST_BASE_URL"),
		DatabaseURL:        envTrimmed("DATABASE_URL"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		// The mutation service routinely takes tens of seconds on large
		// documents; 120s is the hard ceiling before the call is abandoned.
		MutationTimeout:  120 * time.Second,
		AutosaveDebounce: 3 * time.Second,
		// 5 MiB of undo snapshots per session.
		HistoryByteBudget: 5 << 20,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MutationTimeout, err = durationFromEnv("MUTATION_TIMEOUT", cfg.MutationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AutosaveDebounce, err = durationFromEnv("APP_AUTOSAVE_DEBOUNCE", cfg.AutosaveDebounce)
	if err != nil {
		return Config{}, err
	}
	budget, err := intFromEnv("APP_HISTORY_BYTE_BUDGET", int(cfg.HistoryByteBudget))
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryByteBudget = int64(budget)
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.MutationTimeout <= 0 {
		return Config{}, fmt.Errorf("MUTATION_TIMEOUT must be positive")
	}
	if cfg.AutosaveDebounce <= 0 {
		return Config{}, fmt.Errorf("APP_AUTOSAVE_DEBOUNCE must be positive")
	}
	if cfg.HistoryByteBudget <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_BYTE_BUDGET must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
