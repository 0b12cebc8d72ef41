// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/capture"
	"github.com/groupdigest/summary-platform/internal/config"
	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/handler"
	"github.com/groupdigest/summary-platform/internal/middleware"
	natsclient "github.com/groupdigest/summary-platform/internal/nats"
	"github.com/groupdigest/summary-platform/internal/prompt"
	"github.com/groupdigest/summary-platform/internal/store"
	"github.com/groupdigest/summary-platform/internal/summarize"
	"github.com/groupdigest/summary-platform/internal/triage"
	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "summary-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream stream exists
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Open the SQLite store
	db, err := store.Open(cfg.SQLiteDSN, engine.ParseProvider(cfg.DefaultProvider), cfg.ImportanceThreshold)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Seed the cloud credential from the environment when the store has
	// none yet. Runtime updates through the settings API win afterwards.
	if cfg.CloudAPIKey != "" {
		if stored, err := db.CloudCredential(ctx); err == nil && stored == "" {
			if err := db.SetCloudCredential(ctx, cfg.CloudAPIKey); err != nil {
				log.Warn("failed to seed cloud credential", zap.Error(err))
			}
		}
	}

	// Initialize inference backends and the provider router
	runtime, err := engine.NewOllamaRuntime(cfg.OllamaHost)
	if err != nil {
		log.Error("failed to create local runtime", zap.Error(err))
		os.Exit(1)
	}
	local := engine.NewLocalBackend(runtime, log)
	cloud := engine.NewCloudBackend(db, cfg.CloudModel, cfg.CloudBaseURL, log)
	router := engine.NewRouter(local, cloud, db, log)

	// Initialize the summarization workflow and triage scorer
	orchestrator := summarize.NewOrchestrator(router, db, db, db, db, db, streamManager, log)
	scorer := triage.NewScorer(router, db, prompt.NewBuilder(), log)

	// Refresh the stream gauge periodically.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := streamManager.StreamInfo(ctx); err != nil {
				log.Debug("stream info refresh failed", zap.Error(err))
			}
		}
	}()

	// Start the capture ingestion pipeline
	ingestor := capture.NewIngestor(streamManager, db, scorer, log)
	stopIngest, err := ingestor.Start(ctx)
	if err != nil {
		log.Error("failed to start capture ingestor", zap.Error(err))
		os.Exit(1)
	}
	defer stopIngest()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient, db)
	threadHandler := handler.NewThreadHandler(db, db, log)
	summaryHandler := handler.NewSummaryHandler(orchestrator, router, db, db, log)
	triageHandler := handler.NewTriageHandler(scorer, log)
	settingsHandler := handler.NewSettingsHandler(db, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Threads
		r.Route("/threads", func(r chi.Router) {
			r.Get("/", threadHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", threadHandler.Get)
				r.Get("/messages", threadHandler.Messages)

				// Summaries
				r.Get("/summaries/latest", summaryHandler.Latest)
				r.Get("/summaries/stream", summaryHandler.Stream)
				r.With(middleware.GenerationRateLimit(5, time.Minute)).
					Post("/summaries", summaryHandler.Create)
			})
		})

		// Generation control
		r.Post("/generation/cancel", summaryHandler.Cancel)

		// Triage
		r.Post("/triage/score", triageHandler.Score)

		// Settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/provider", settingsHandler.UpdateProvider)
			r.Put("/credential", settingsHandler.UpdateCredential)
			r.Put("/threshold", settingsHandler.UpdateThreshold)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Best effort: release any loaded model before exit.
	if err := router.UnloadModel(shutdownCtx); err != nil {
		log.Warn("failed to unload model", zap.Error(err))
	}

	log.Info("server stopped")
}
