package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key) //nolint:errcheck
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if got := cfg.StorageDSN(); got != filepath.Join("./data", "taskledger.db") {
		t.Errorf("StorageDSN = %q", got)
	}
	if ttl, _ := cfg.TokenTTLDuration(); ttl != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", ttl)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "taskledger.yaml", `
server:
  addr: ":8081"
auth:
  jwt_secret: "abc"
  token_ttl: "2h"
  keys:
    - owner: "0xabc"
      key_hash: "$2a$10$hash"
storage:
  driver: memory
events:
  history_size: 10
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8081" || cfg.Auth.JWTSecret != "abc" {
		t.Errorf("unexpected server/auth: %+v %+v", cfg.Server, cfg.Auth)
	}
	if len(cfg.Auth.Keys) != 1 || cfg.Auth.Keys[0].Owner != "0xabc" {
		t.Errorf("keys = %+v", cfg.Auth.Keys)
	}
	if cfg.Storage.Driver != DriverMemory || cfg.Events.HistorySize != 10 {
		t.Errorf("storage/events = %+v %+v", cfg.Storage, cfg.Events)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("unset fields should keep defaults, data_dir = %q", cfg.DataDir)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", cfg.SlogLevel())
	}
	if ttl, _ := cfg.TokenTTLDuration(); ttl != 2*time.Hour {
		t.Errorf("ttl = %v, want 2h", ttl)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "taskledger.toml", `
log_level = "warn"

[server]
addr = ":7070"

[storage]
driver = "postgres"
dsn = "postgres://localhost/tasks?sslmode=disable"

[[auth.keys]]
owner = "0xdef"
key_hash = "$2a$10$hash"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" || cfg.Storage.Driver != DriverPostgres {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.StorageDSN() != "postgres://localhost/tasks?sslmode=disable" {
		t.Errorf("StorageDSN = %q", cfg.StorageDSN())
	}
	if len(cfg.Auth.Keys) != 1 || cfg.Auth.Keys[0].Owner != "0xdef" {
		t.Errorf("keys = %+v", cfg.Auth.Keys)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("level = %v, want warn", cfg.SlogLevel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "bad.yaml", "server: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Load(writeFile(t, "bad.toml", "server = [")); err == nil {
		t.Error("expected error for malformed toml")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TASKLEDGER_ADDR", ":6060")
	t.Setenv("TASKLEDGER_JWT_SECRET", "from-env")
	t.Setenv("TASKLEDGER_DB_DRIVER", "memory")
	t.Setenv("TASKLEDGER_LOG_LEVEL", "error")
	t.Setenv("TASKLEDGER_EVENT_HISTORY", "5")
	unsetenv(t, "TASKLEDGER_DB_DSN")

	envFile := writeFile(t, ".env", "TASKLEDGER_DB_DSN=from-dotenv\nTASKLEDGER_ADDR=:1111\n")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, envFile); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.Addr != ":6060" {
		t.Errorf("process env should win over dotenv, addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.DSN != "from-dotenv" {
		t.Errorf("dsn = %q, want value from dotenv", cfg.Storage.DSN)
	}
	if cfg.Auth.JWTSecret != "from-env" || cfg.Storage.Driver != DriverMemory {
		t.Errorf("auth/storage = %+v %+v", cfg.Auth, cfg.Storage)
	}
	if cfg.LogLevel != "error" || cfg.Events.HistorySize != 5 {
		t.Errorf("log_level/history = %q %d", cfg.LogLevel, cfg.Events.HistorySize)
	}
}

func TestApplyEnv_MissingFileIgnored(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
}

func TestApplyEnv_BadHistory(t *testing.T) {
	t.Setenv("TASKLEDGER_EVENT_HISTORY", "lots")
	if err := ApplyEnv(DefaultConfig(), filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatal("expected error for non-numeric history size")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"bad ttl", func(c *Config) { c.Auth.TokenTTL = "soon" }},
		{"negative ttl", func(c *Config) { c.Auth.TokenTTL = "-1h" }},
		{"key without owner", func(c *Config) { c.Auth.Keys = []KeyConfig{{KeyHash: "h"}} }},
		{"key without hash", func(c *Config) { c.Auth.Keys = []KeyConfig{{Owner: "0xabc"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSlogLevel_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "chatty"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("level = %v, want info fallback", cfg.SlogLevel())
	}
}
