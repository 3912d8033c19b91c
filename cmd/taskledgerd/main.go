// Command taskledgerd is the task ledger server daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/GoCodeAlone/taskledger/comms"
	"github.com/GoCodeAlone/taskledger/config"
	"github.com/GoCodeAlone/taskledger/internal/version"
	"github.com/GoCodeAlone/taskledger/server"
	"github.com/GoCodeAlone/taskledger/server/ws"
	"github.com/GoCodeAlone/taskledger/task"
)

var (
	configPath = flag.String("config", "taskledger.yaml", "path to YAML or TOML config file")
	envFile    = flag.String("env", ".env", "path to dotenv file")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	logger.Info("starting taskledgerd",
		"version", version.Version,
		"commit", version.Commit,
		"driver", cfg.Storage.Driver,
	)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close() //nolint:errcheck

	bus := comms.NewInMemoryBus(cfg.Events.HistorySize)
	hub := ws.NewHub(logger)
	detach := hub.Attach(bus)
	defer detach()

	ledger := task.NewLedger(store, task.WithBus(bus), task.WithLogger(logger))

	srv := server.New(*cfg, version.Version, logger)
	srv.SetLedger(ledger)
	srv.SetBus(bus)
	srv.SetHub(hub)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	logger.Info("shutdown complete")
}

// loadConfig reads path when it exists, then applies environment overrides.
func loadConfig(path, envFile string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (task.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return task.NewMemoryStore(), nil
	case config.DriverSQLite:
		if cfg.Storage.DSN == "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return task.NewSQLiteStore(cfg.StorageDSN())
	default:
		return task.OpenSQLStore(cfg.Storage.Driver, cfg.StorageDSN())
	}
}
