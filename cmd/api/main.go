// Package main provides the entry point for the API server.
package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/regulateai/platform/internal/api"
	"github.com/regulateai/platform/internal/auth"
	pgqueue "github.com/regulateai/platform/internal/queue/postgres"
	"github.com/regulateai/platform/internal/shutdown"
	pgstore "github.com/regulateai/platform/internal/store/postgres"
	"github.com/regulateai/platform/pkg/config"
	"github.com/regulateai/platform/pkg/logger"
)

func main() {
	log := logger.New(slog.LevelInfo, true)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	store, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	queue := pgqueue.NewPostgresQueue(store.DB(), log.Logger)

	authCfg := &auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}
	authService := auth.NewService(authCfg, store.APIKeys(), log.Logger)

	server := api.NewServer(cfg, store, queue, authService, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", store))
	coordinator.Register(shutdown.NewFuncComponent("api-server", server.Shutdown))

	go func() {
		coordinator.WaitForSignal()
		cancel()
	}()

	log.Info("starting API server",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
	)

	if err := server.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	coordinator.Wait()
	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
