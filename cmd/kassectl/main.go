package main

import (
	"context"
	"fmt"
	"os"

	"tutorkasse/internal/cli"
	"tutorkasse/internal/config"
	"tutorkasse/internal/kassectl"
	"tutorkasse/internal/log"
)

func main() {
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"), "kassectl")

	open := func(ctx context.Context) (kassectl.Ledger, func() error, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		be, err := cli.CreateBackend(ctx, logger, cfg)
		if err != nil {
			return nil, nil, err
		}
		return cli.NewLedgerService(cfg, be), be.Close, nil
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := kassectl.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		logger.Error("Command execution failed", log.FieldError, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
