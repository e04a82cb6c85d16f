// Onboard - trade business onboarding server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/serviceseeking/onboard/internal/api"
	"github.com/serviceseeking/onboard/internal/config"
	"github.com/serviceseeking/onboard/internal/enrich"
	"github.com/serviceseeking/onboard/internal/flow"
	"github.com/serviceseeking/onboard/internal/genai"
	"github.com/serviceseeking/onboard/internal/middleware"
	"github.com/serviceseeking/onboard/internal/refdata"
	"github.com/serviceseeking/onboard/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ref := refdata.New(cfg.ResourcesDir)

	// Enrichment clients. Each degrades to empty results when its
	// credentials are missing.
	registry := enrich.NewRegistryClient(cfg.RegistryGUID, cfg.HTTPTimeout, logger)
	trades := enrich.NewTradesClient(cfg.TradesAPIKey, cfg.TradesAuth, cfg.HTTPTimeout, logger)
	search := enrich.NewSearchClient(cfg.SearchAPIKey, cfg.HTTPTimeout, logger)
	places := enrich.NewPlacesClient(cfg.PlacesAPIKey, cfg.HTTPTimeout, logger)
	discover := enrich.NewDiscoverer(cfg.ProbeTimeout, logger)
	scraper := enrich.NewScraper(cfg.ScrapeTimeout, logger)
	images := enrich.NewDownloader(cfg.ScrapeTimeout,
		cfg.Heuristics.MinDownloadBytes, cfg.Heuristics.MaxDownloadBytes, logger)
	generator := genai.New(cfg.GeneratorAPIKey, cfg.GeneratorModel, cfg.VisionModel,
		cfg.GeneratorTimeout, logger)

	// Pre-warm the licence register token so the first session's identity
	// fan-out doesn't pay the OAuth round-trip.
	if cfg.TradesAPIKey != "" && cfg.TradesAuth != "" {
		warmCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		if _, err := trades.Token(warmCtx); err != nil {
			slog.Warn("Licence register token pre-warm failed", "error", err)
		} else {
			slog.Info("Licence register token ready")
		}
		cancel()
	}

	sessions := flow.NewSessions()
	orch := flow.New(flow.Deps{
		Registry:   registry,
		Licences:   trades,
		Search:     search,
		Places:     places,
		Discover:   discover,
		Scraper:    scraper,
		Images:     images,
		Generator:  generator,
		Ref:        ref,
		Heuristics: cfg.Heuristics,
		Logger:     logger,
	})

	handler := api.NewHandler(orch, sessions, repo, cfg, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)

	// WebSocket chat transport.
	r.Get("/ws/chat", handler.ServeChat)

	// Create server. A turn can span several enrichment and generator
	// calls, so the write timeout stays generous.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
