// Package main provides the entry point for the document generation worker.
package main

import (
	"context"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/regulateai/platform/internal/compliance"
	pgqueue "github.com/regulateai/platform/internal/queue/postgres"
	"github.com/regulateai/platform/internal/secrets"
	"github.com/regulateai/platform/internal/shutdown"
	pgstore "github.com/regulateai/platform/internal/store/postgres"
	"github.com/regulateai/platform/pkg/config"
	"github.com/regulateai/platform/pkg/logger"
)

func main() {
	log := logger.Default()

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
	defer store.Close()

	queue := pgqueue.NewPostgresQueue(store.DB(), log.Logger)

	cipher, err := secrets.NewCipher(&secrets.Config{
		AgePublicKey:  cfg.Documents.AgePublicKey,
		AgePrivateKey: cfg.Documents.AgePrivateKey,
	}, log.Logger)
	if err != nil {
		log.Error("document encryption is required for the worker", "error", err)
		os.Exit(1)
	}
	if !cipher.CanEncrypt() {
		log.Error("DOCUMENTS_AGE_PUBLIC_KEY must be set for the worker")
		os.Exit(1)
	}

	rules := compliance.DefaultRules()
	if cfg.Compliance.RulesPath != "" {
		loaded, err := compliance.LoadRules(cfg.Compliance.RulesPath)
		if err != nil {
			log.Error("failed to load compliance rules, using defaults", "error", err)
		} else {
			rules = loaded
		}
	}
	scorer := compliance.NewScorer(store, rules, cfg.Compliance.ScoreWindow, log.Logger)
	generator := compliance.NewGenerator(store, scorer, cipher, cfg.Compliance.ScoreWindow, log.Logger)

	worker := compliance.NewWorker(compliance.DefaultWorkerConfig(), queue, generator, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting document worker")
	if err := worker.Start(ctx); err != nil {
		log.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", store))
	coordinator.Register(shutdown.NewStopperComponent("document-worker", worker))

	coordinator.WaitForSignal()
	coordinator.Wait()

	log.Info("document worker shutdown complete")
	os.Exit(coordinator.ExitCode())
}
