package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/config"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/handler"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/notify"
	"github.com/dandantas/vigil/internal/service"
	"github.com/dandantas/vigil/internal/sweeper"
	"github.com/dandantas/vigil/internal/webhook"
	"github.com/dandantas/vigil/internal/worker"
	"github.com/dandantas/vigil/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Vigil", "version", version, "store", cfg.StoreKind)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the store
	var (
		jobStore          database.JobStore
		eventStore        database.EventStore
		notificationStore database.NotificationStore
		sweepLock         sweeper.LeaderLock
		pingStore         handler.StorePinger
	)

	if cfg.StoreKind == "memory" {
		mem := database.NewMemoryStore()
		jobStore = mem
		eventStore = mem
		notificationStore = mem
		pingStore = func(context.Context) error { return nil }
	} else {
		db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				slog.Error("Failed to disconnect from MongoDB", "error", err)
			}
		}()

		if err := database.CreateIndexes(ctx, db); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}

		jobStore = database.NewJobRepository(db)
		eventStore = database.NewEventRepository(db)
		notificationStore = database.NewNotificationRepository(db)
		if cfg.SweepLockEnabled {
			sweepLock = database.NewLockRepository(db)
		}
		pingStore = func(ctx context.Context) error {
			return db.Client.Ping(ctx, nil)
		}
	}

	// Event bus and notification pipeline
	eventBus := bus.New()

	var defaultWebhook *model.Webhook
	if cfg.DefaultWebhookURL != "" {
		defaultWebhook = &model.Webhook{URL: cfg.DefaultWebhookURL}
		if err := defaultWebhook.Validate(); err != nil {
			slog.Error("Invalid default webhook URL", "error", err)
			os.Exit(1)
		}
	}

	dispatcher := webhook.NewDispatcher(cfg.DefaultWebhookTimeout)
	pool := worker.NewPool(cfg.WorkerPoolSize, cfg.NotifyQueueLen)
	notifier := notify.NewNotifier(jobStore, notificationStore, pool, dispatcher, defaultWebhook)
	notifier.Register(eventBus)
	pool.Start()
	metrics.RegisterNotifyQueueDepth(pool.QueueLength)

	// Initialize services
	jobService := service.NewJobService(jobStore, eventStore)
	pingService := service.NewPingService(jobStore, eventStore, eventBus)

	// Initialize sweeper
	sw := sweeper.NewSweeper(cfg, jobStore, eventStore, sweepLock, eventBus)
	sw.Start(ctx)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService)
	pingHandler := handler.NewPingHandler(pingService)
	notificationHandler := handler.NewNotificationHandler(notificationStore)
	healthHandler := handler.NewHealthHandler(pingStore, dispatcher.GetCircuitBreakerState, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(
		jobHandler,
		pingHandler,
		notificationHandler,
		healthHandler,
		corsConfig,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first so no new pings or events arrive
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the sweeper (waits for an in-flight tick)
	slog.Info("Stopping sweeper...")
	sw.Stop(shutdownCtx)

	// Drain queued notifications
	slog.Info("Stopping worker pool...")
	pool.Stop()

	slog.Info("Vigil stopped")
}
