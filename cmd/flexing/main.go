package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Flexing/internal/api"
	"github.com/MikeSquared-Agency/Flexing/internal/archive"
	"github.com/MikeSquared-Agency/Flexing/internal/audit"
	"github.com/MikeSquared-Agency/Flexing/internal/config"
	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
	"github.com/MikeSquared-Agency/Flexing/internal/migrations"
	"github.com/MikeSquared-Agency/Flexing/internal/narrative"
	"github.com/MikeSquared-Agency/Flexing/internal/recalc"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Migrations
	if cfg.Database.RunMigrations {
		if err := migrations.Run(cfg.Database.URL); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// Database
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Events (optional)
	var eventsClient events.Client = events.Noop{}
	if cfg.Events.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to events, running without", "error", err)
		} else {
			eventsClient = nc
			defer nc.Close()
			logger.Info("connected to events")
		}
	}

	// Archive (optional)
	var archiver archive.Archiver
	if cfg.Archive.Bucket != "" {
		ar, err := archive.NewS3(ctx, archive.Options{
			Bucket:    cfg.Archive.Bucket,
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			logger.Warn("failed to configure archive, run summaries stay in the database only", "error", err)
		} else {
			archiver = ar
			logger.Info("archive configured", "bucket", cfg.Archive.Bucket)
		}
	}

	// Narrative (optional)
	var narrativeClient narrative.Client
	if cfg.Narrative.URL != "" {
		narrativeClient = narrative.NewHTTPClient(cfg.Narrative.URL, cfg.Narrative.APIKey)
	}

	m := metrics.New()

	// Recalculation
	recalculator := recalc.New(db, eventsClient, archiver, m, recalc.Options{
		Tolerance: cfg.Recalculation.Tolerance,
		BatchSize: cfg.Recalculation.BatchSize,
		Throttle:  cfg.RecalcThrottle(),
	}, logger)

	var interval time.Duration
	if cfg.Recalculation.Enabled {
		interval = cfg.RecalcInterval()
	}
	scheduler := recalc.NewScheduler(recalculator, eventsClient, interval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	logger.Info("recalculation scheduler started", "interval", interval, "tolerance", cfg.Recalculation.Tolerance)

	auditor := audit.New(db, eventsClient, m, cfg.Audit.Threshold, logger)

	// API server
	router := api.NewRouter(api.Deps{
		Store:              db,
		Events:             eventsClient,
		Recalculator:       scheduler,
		Auditor:            auditor,
		Narrative:          narrativeClient,
		Metrics:            m,
		AdminToken:         cfg.Server.AdminToken,
		JWTSecret:          cfg.Server.JWTSecret,
		RateLimitPerMinute: cfg.Server.RateLimit,
		Tolerance:          cfg.Recalculation.Tolerance,
	}, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(m),
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
