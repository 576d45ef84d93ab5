package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/permitdesk/permitdesk/pkg/access"
	"github.com/permitdesk/permitdesk/pkg/api"
	"github.com/permitdesk/permitdesk/pkg/audit"
	"github.com/permitdesk/permitdesk/pkg/config"
	"github.com/permitdesk/permitdesk/pkg/documents"
	"github.com/permitdesk/permitdesk/pkg/entitlements"
	"github.com/permitdesk/permitdesk/pkg/inspections"
	"github.com/permitdesk/permitdesk/pkg/messages"
	"github.com/permitdesk/permitdesk/pkg/middleware"
	"github.com/permitdesk/permitdesk/pkg/notifications"
	"github.com/permitdesk/permitdesk/pkg/observability"
	"github.com/permitdesk/permitdesk/pkg/permits"
	"github.com/permitdesk/permitdesk/pkg/storage"
	"github.com/permitdesk/permitdesk/pkg/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "permitdesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting permitdesk")

	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var otelMetrics *observability.OTelMetrics
	if cfg.Observability.OTelEnabled {
		otelMetrics, err = observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize OTel metrics: %w", err)
		}
	}

	connections, err := storage.NewConnectionManager(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer connections.Close()

	db := connections.Primary()
	if err := storage.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database migrations applied")

	redisClient, err := storage.NewRedisClient(cfg.Storage)
	if err != nil {
		// Redis only backs rate limiting; the service runs without it.
		logger.WithError(err).Warn("Redis unavailable, falling back to in-memory rate limiting")
		redisClient = nil
	}

	var blobs documents.BlobStore
	if cfg.Storage.S3Bucket != "" {
		blobClient, err := storage.NewBlobClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize blob storage: %w", err)
		}
		blobs = blobClient
	}

	dispatchLogger := logrus.New()
	dispatchLogger.SetFormatter(&logrus.JSONFormatter{})
	senders := []notifications.Sender{notifications.NewLogSender(dispatchLogger)}
	if host := os.Getenv("PERMITDESK_SMTP_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("PERMITDESK_SMTP_PORT"))
		senders = append(senders, notifications.NewEmailSender(notifications.EmailConfig{
			Host:     host,
			Port:     port,
			From:     os.Getenv("PERMITDESK_SMTP_FROM"),
			Username: os.Getenv("PERMITDESK_SMTP_USERNAME"),
			Password: os.Getenv("PERMITDESK_SMTP_PASSWORD"),
		}, dispatchLogger))
	}

	dispatcher := notifications.NewDispatcher(ctx, notifications.DispatcherConfig{
		Workers:     cfg.Notifications.Workers,
		QueueSize:   cfg.Notifications.QueueSize,
		SendTimeout: cfg.Notifications.SendTimeout,
		Retry: notifications.RetryConfig{
			MaxAttempts: cfg.Notifications.MaxAttempts,
		},
	}, senders, dispatchLogger, metrics)

	templates, err := workflow.NewTemplateStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize template store: %w", err)
	}
	recorder, err := audit.NewRecorder(db, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize audit recorder: %w", err)
	}

	tier := entitlements.Tier(os.Getenv("PERMITDESK_PLAN_TIER"))
	facade := permits.NewFacade(permits.FacadeConfig{
		Resolver:    access.NewResolver(db, logger, metrics),
		Permits:     permits.NewService(db),
		Sequencer:   workflow.NewSequencer(db),
		Templates:   templates,
		Documents:   documents.NewService(db, blobs, logger),
		Messages:    messages.NewService(db),
		Inspections: inspections.NewService(db),
		Recorder:    recorder,
		Feed:        audit.NewStore(db),
		Notifier:    dispatcher,
		Limits:      entitlements.ForTier(tier),
		Logger:      logger,
		Metrics:     metrics,
		OTel:        otelMetrics,
	})

	server := api.NewServer(facade, logger)

	var handler http.Handler = server
	handler = middleware.PrincipalMiddleware(logger)(handler)
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			handler = middleware.NewDistributedRateLimitMiddleware(redisClient, logger).Handler(handler)
		} else {
			handler = middleware.NewRateLimitMiddleware().Handler(handler)
		}
	}
	handler = middleware.RequestIDMiddleware()(handler)
	handler = otelhttp.NewHandler(handler, "permitdesk.api")

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return dispatcher.Shutdown(cfg.Server.ShutdownTimeout)
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	// Connection pool gauges refresh in the background until shutdown.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := connections.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}()

	return group.Wait()
}
