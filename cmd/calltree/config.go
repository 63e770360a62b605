package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the calltree server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // "text" or "json"
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func calltreeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calltree"
	}
	return filepath.Join(home, ".calltree")
}

func settingsPath() string {
	return filepath.Join(calltreeDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("CALLTREE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CALLTREE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}
