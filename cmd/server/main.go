package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/contract-ledger/internal/api"
	"github.com/david/contract-ledger/internal/app"
	"github.com/david/contract-ledger/internal/auth"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise", "error", err)
	}
	defer a.Close()

	authService, err := auth.NewService(a.Operators, cfg.Auth, log)
	if err != nil {
		log.Fatal("Failed to initialise auth", "error", err)
	}
	if cfg.Auth.Disabled {
		log.Warn("Authentication is disabled for contract routes")
	}

	srv := api.NewServer(a.Pipeline, authService, cfg.Server, cfg.Auth, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		if err := srv.Shutdown(15 * time.Second); err != nil {
			log.Error("Shutdown failed", "error", err)
		}
	}
}
