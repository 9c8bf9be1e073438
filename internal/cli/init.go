// Package cli provides common initialization utilities shared by
// cmd/tutorkasse, cmd/tutorkasse-worker and cmd/kassectl.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorkasse/internal/backend"
	"tutorkasse/internal/config"
	"tutorkasse/internal/core"
	"tutorkasse/internal/log"
	"tutorkasse/internal/receipts"
	"tutorkasse/internal/services"
)

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// CreateBackend opens the configured ledger store.
func CreateBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
}

// NewLedgerService wires the service with the taxonomy, the receipt host and
// the change publisher of be.
func NewLedgerService(cfg *config.Config, be *backend.BackendResult) *services.LedgerService {
	opts := services.Options{
		Publisher: be.Publisher,
		CacheTTL:  cfg.LedgerCacheTTL,
	}
	if cfg.ImgBBAPIKey != "" {
		opts.Uploader = receipts.NewImgBB(cfg.ImgBBAPIKey, cfg.ImgBBEndpoint, &http.Client{Timeout: 30 * time.Second})
	}
	taxonomy := core.NewTaxonomy(cfg.Roster, cfg.Categories, nil)
	return services.NewLedgerService(be.Store, taxonomy, opts)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
