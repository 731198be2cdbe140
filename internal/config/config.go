// Package config loads Cadenza configuration from the environment.
package config

import (
	"errors"
	"os"
	"time"
)

// Config holds everything the composition root needs to wire the app.
type Config struct {
	ServerURL    string        // base URL of the sync server
	RealtimeURL  string        // websocket URL of the push channel
	AuthToken    string        // bearer token for sync and push
	UserID       string        // user identity for the push channel
	DataDir      string        // local store location
	Backend      string        // "sqlite" or "bolt"
	SyncInterval time.Duration // periodic trigger interval
	SyncTimeout  time.Duration // per-exchange timeout
}

// Load reads configuration from the environment, applying defaults for
// everything except the server URL.
func Load() (*Config, error) {
	interval, err := parseDuration("CADENZA_SYNC_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("CADENZA_SYNC_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:    os.Getenv("CADENZA_SERVER_URL"),
		RealtimeURL:  os.Getenv("CADENZA_REALTIME_URL"),
		AuthToken:    os.Getenv("CADENZA_AUTH_TOKEN"),
		UserID:       os.Getenv("CADENZA_USER_ID"),
		DataDir:      getEnv("CADENZA_DATA_DIR", defaultDataDir()),
		Backend:      getEnv("CADENZA_STORAGE_BACKEND", "sqlite"),
		SyncInterval: interval,
		SyncTimeout:  timeout,
	}

	if cfg.ServerURL == "" {
		return nil, errors.New("CADENZA_SERVER_URL is required")
	}
	if cfg.Backend != "sqlite" && cfg.Backend != "bolt" {
		return nil, errors.New("CADENZA_STORAGE_BACKEND must be sqlite or bolt")
	}

	return cfg, nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.cadenza"
	}
	return ".cadenza"
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + key + " format")
	}
	return d, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
