// Package config defines the task ledger server configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Auth     AuthConfig    `json:"auth" yaml:"auth" toml:"auth"`
	Storage  StorageConfig `json:"storage" yaml:"storage" toml:"storage"`
	Events   EventsConfig  `json:"events" yaml:"events" toml:"events"`
	DataDir  string        `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	LogLevel string        `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls how callers prove their identity.
type AuthConfig struct {
	JWTSecret string      `json:"jwt_secret" yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  string      `json:"token_ttl" yaml:"token_ttl" toml:"token_ttl"` // Go duration, e.g. "24h"
	Keys      []KeyConfig `json:"keys" yaml:"keys" toml:"keys"`
}

// KeyConfig binds an API key to the owner it authenticates.
type KeyConfig struct {
	Owner   string `json:"owner" yaml:"owner" toml:"owner"`
	KeyHash string `json:"key_hash" yaml:"key_hash" toml:"key_hash"` // bcrypt hash
}

// StorageConfig selects the task store backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"` // "memory", "sqlite", "postgres"
	DSN    string `json:"dsn" yaml:"dsn" toml:"dsn"`          // file path or connection string
}

// EventsConfig controls the in-process event bus.
type EventsConfig struct {
	HistorySize int `json:"history_size" yaml:"history_size" toml:"history_size"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		Events: EventsConfig{
			HistorySize: 1000,
		},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML or TOML config file, chosen by extension, over the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ApplyEnv loads the given dotenv files (".env" when none are named; missing
// files are skipped) and then overrides cfg from TASKLEDGER_* variables.
// Variables already set in the process environment win over dotenv values.
func ApplyEnv(cfg *Config, envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if v := os.Getenv("TASKLEDGER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TASKLEDGER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TASKLEDGER_TOKEN_TTL"); v != "" {
		cfg.Auth.TokenTTL = v
	}
	if v := os.Getenv("TASKLEDGER_DB_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("TASKLEDGER_DB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("TASKLEDGER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TASKLEDGER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKLEDGER_EVENT_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TASKLEDGER_EVENT_HISTORY: %w", err)
		}
		cfg.Events.HistorySize = n
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.TokenTTLDuration(); err != nil {
		return err
	}
	for i, k := range c.Auth.Keys {
		if strings.TrimSpace(k.Owner) == "" {
			return fmt.Errorf("auth.keys[%d]: owner is required", i)
		}
		if k.KeyHash == "" {
			return fmt.Errorf("auth.keys[%d]: key_hash is required", i)
		}
	}
	return nil
}

// TokenTTLDuration parses Auth.TokenTTL.
func (c *Config) TokenTTLDuration() (time.Duration, error) {
	if c.Auth.TokenTTL == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("auth.token_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("auth.token_ttl must be positive, got %s", d)
	}
	return d, nil
}

// StorageDSN returns the configured DSN, defaulting SQLite to a file under
// DataDir.
func (c *Config) StorageDSN() string {
	if c.Storage.DSN != "" || c.Storage.Driver != DriverSQLite {
		return c.Storage.DSN
	}
	return filepath.Join(c.DataDir, "taskledger.db")
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
