package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Storage backends selectable through STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	Environment   string
	StoreBackend  string
	DataDir       string
	SQLitePath    string
	DatabaseURL   string
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults
// suitable for local use: file-backed stores under ./data.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getenv("APP_ENV", "development"),
		StoreBackend:  getenv("STORE_BACKEND", BackendFile),
		DataDir:       getenv("DATA_DIR", "data"),
		SQLitePath:    os.Getenv("SQLITE_PATH"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "bank.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable for the selected
// backend.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile:
		if c.DataDir == "" {
			return errors.New("DATA_DIR must not be empty for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH must not be empty for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected %s, %s or %s)",
			c.StoreBackend, BackendFile, BackendSQLite, BackendPostgres)
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
