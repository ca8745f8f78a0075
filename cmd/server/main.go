package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/api"
	"github.com/renalworks/ckd-risk-engine/internal/cache"
	"github.com/renalworks/ckd-risk-engine/internal/config"
	"github.com/renalworks/ckd-risk-engine/internal/database"
	"github.com/renalworks/ckd-risk-engine/internal/domain"
	"github.com/renalworks/ckd-risk-engine/internal/engine"
	"github.com/renalworks/ckd-risk-engine/internal/repository"
	"github.com/renalworks/ckd-risk-engine/internal/reportstore"
	"github.com/renalworks/ckd-risk-engine/pkg/ehr"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting CKD risk engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Patient store
	db, err := database.NewConnection(ctx, configManager.GetDatabaseConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	runner, err := database.NewMigrationRunner(configManager.GetDatabaseConnectionString(), "migrations", logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := runner.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	runner.Close()

	repo := repository.NewSnapshotRepository(db.Pool, logger)
	provider := ehr.NewResilientProvider(repo, cfg.Engine, logger)

	// Report archive
	var reports domain.ReportStore
	switch cfg.Archive.Driver {
	case "postgres":
		store, err := reportstore.NewPostgresStoreFromURL(cfg.Archive.PostgresURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open postgres report archive")
		}
		defer store.Close()
		reports = store
	default:
		store, err := reportstore.NewSQLiteStore(cfg.Archive.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open sqlite report archive")
		}
		defer store.Close()
		reports = store
	}

	// Report cache: Redis when enabled, in-process memo otherwise
	var reportCache domain.ReportCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		reportCache = redisCache
	} else {
		reportCache = cache.NewMemoCache(cfg.Cache.MemoSize, cfg.Cache.MemoTTL)
	}

	server := api.NewServer(api.Deps{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: engine.NewOrchestrator(provider, logger),
		Scanner:      engine.NewScanner(logger),
		Provider:     provider,
		Lister:       repo,
		Reports:      reports,
		Cache:        reportCache,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}
