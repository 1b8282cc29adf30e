package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/config"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/connector/curated"
	"github.com/vibe4vets/directory-indexer/internal/connector/nrd"
	"github.com/vibe4vets/directory-indexer/internal/connector/samhsa"
	"github.com/vibe4vets/directory-indexer/internal/connector/statebenefits"
	"github.com/vibe4vets/directory-indexer/internal/connector/vafacilities"
	"github.com/vibe4vets/directory-indexer/internal/ingest"
	"github.com/vibe4vets/directory-indexer/internal/logger"
	"github.com/vibe4vets/directory-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	only       = flag.String("only", "", "Run a single connector by name")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIngestConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "ingest",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting ingestion run")

	// Cancel the run on interrupt; per-candidate transactions keep a
	// partial run consistent
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	// Build the connector registry. File-backed connectors register only
	// when their reference file is configured.
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.Connectors.HTTPTimeout)

	registry := connector.NewRegistry()
	registry.Register(vafacilities.New(httpClient, clock, cfg.Connectors.VAFacilitiesURL, cfg.Connectors.FanoutPoolSize))
	registry.Register(nrd.New(httpClient, clock, cfg.Connectors.NRDURL))
	if cfg.Connectors.SAMHSACSVPath != "" {
		registry.Register(samhsa.New(clock, cfg.Connectors.SAMHSACSVPath))
	}
	if cfg.Connectors.StateBenefitsPath != "" {
		registry.Register(statebenefits.New(clock, cfg.Connectors.StateBenefitsPath))
	}
	if cfg.Connectors.CuratedPath != "" {
		registry.Register(curated.New(clock, cfg.Connectors.CuratedPath))
	}

	if *only != "" {
		single, ok := registry.Get(*only)
		if !ok {
			logger.FatalCtx(ctx, "Unknown connector", zap.String("name", *only))
		}
		registry = connector.NewRegistry()
		registry.Register(single)
	}

	// Run
	runner := ingest.NewRunner(db, registry, clock, cfg.Connectors.MaxErrorsSurfaced)
	summary, err := runner.Run(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Ingestion run failed", zap.Error(err))
	}

	if summary.HasErrors() {
		logger.Warn("Ingestion run finished with errors",
			zap.String("jobRunID", summary.JobRunID),
			zap.Int("errors", len(summary.Errors)),
		)
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}
	logger.Info("Ingestion run finished cleanly", zap.String("jobRunID", summary.JobRunID))
}
