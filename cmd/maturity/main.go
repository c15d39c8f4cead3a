package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/Maturity/internal/api"
	"github.com/MikeSquared-Agency/Maturity/internal/assessment"
	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/config"
	"github.com/MikeSquared-Agency/Maturity/internal/hermes"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
	"github.com/MikeSquared-Agency/Maturity/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog, frameworks and users
	var src catalog.Source = catalog.FileSource{
		CatalogPath:    cfg.Catalog.Path,
		FrameworksPath: cfg.Catalog.FrameworksPath,
		UsersPath:      cfg.Catalog.UsersPath,
	}
	if cfg.Catalog.URL != "" {
		src = catalog.NewHTTPSource(cfg.Catalog.URL, cfg.Catalog.Token)
	}
	cat, err := src.LoadCatalog(ctx)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog loaded", "domains", len(cat.Domains), "questions", len(cat.QuestionIDs()))

	// Storage
	db, err := openStore(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("store ready", "driver", cfg.Storage.Driver)

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	var weights scoring.WeightSet
	if len(cfg.Scoring.Weights) > 0 {
		weights = scoring.WeightSet(cfg.Scoring.Weights)
	}

	svc := assessment.NewService(cat, db, assessment.Options{
		Hermes:           hermesClient,
		Metrics:          assessment.NewMetrics(prometheus.DefaultRegisterer),
		Weights:          weights,
		NormalizeWeights: cfg.Scoring.NormalizeWeights,
	}, logger)

	if err := svc.Seed(ctx, src); err != nil {
		logger.Error("failed to seed frameworks and users", "error", err)
		os.Exit(1)
	}

	// Periodic reporting
	if interval := cfg.ReportingInterval(); interval > 0 {
		reporter := assessment.NewReporter(svc, interval)
		reporter.Start(ctx)
		defer reporter.Stop()
		logger.Info("reporter started", "interval", interval)
	}

	// API server
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(svc, cfg.Server.AdminToken, cfg.Server.RateLimit, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return store.NewSQLiteStore(ctx, cfg.SQLitePath)
	}
}
