package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bananano/posterforge/internal"
	"github.com/bananano/posterforge/internal/ai"
	"github.com/bananano/posterforge/internal/ai/gemini"
	"github.com/bananano/posterforge/internal/ai/mock"
	"github.com/bananano/posterforge/internal/handler"
	"github.com/bananano/posterforge/internal/metrics"
	"github.com/bananano/posterforge/internal/middleware"
	"github.com/bananano/posterforge/internal/service"
	"github.com/bananano/posterforge/internal/session"
	"github.com/bananano/posterforge/internal/storage"
	"github.com/bananano/posterforge/internal/styles"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize AI provider
	var provider ai.Provider
	switch cfg.AIProvider {
	case "gemini":
		provider, err = gemini.New(ctx, gemini.Config{
			APIKey:          cfg.GeminiAPIKey,
			AnalysisModel:   cfg.AnalysisModel,
			GenerationModel: cfg.GenerationModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("gemini provider initialization failed: %w", err)
		}
	case "mock":
		provider = mock.New(logger)
		logger.Warn("using mock AI provider; no real posters will be generated")
	}

	// Load the style library. A broken library disables style selection
	// but must not take the whole app down.
	library, libraryErr := styles.Load(cfg.PromptLibraryPath, logger)
	if libraryErr != nil {
		logger.Error("style library unavailable", "path", cfg.PromptLibraryPath, "error", libraryErr)
		library = nil
	}

	// Initialize the poster archive
	var archive storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		archive, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	case storage.ProviderLocal:
		archive, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Sessions and orchestration
	store := session.NewStore(cfg.SessionTTL, logger)
	defer store.Stop()

	normalizer := service.NewImagingNormalizer()
	orch := session.NewOrchestrator(normalizer, provider, library, archive, logger)

	// Handlers
	api := handler.NewAPI(store, orch, library, libraryErr, logger)
	page, err := handler.NewPage("web/templates", library, logger)
	if err != nil {
		return fmt.Errorf("page initialization failed: %w", err)
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	staticFS := http.FileServer(http.Dir("web/static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))

	// Locally archived posters
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth when credentials are configured)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Studio page
	mux.HandleFunc("GET /", page.Home)

	// JSON API; generation is rate limited per client IP
	genLimiter := middleware.NewRateLimiter(10, time.Minute, logger)
	api.RegisterRoutes(mux, genLimiter.Handler)

	// Middleware stack (outermost first)
	isSecure := cfg.Env != "development"
	logging := middleware.NewRequestLoggingMiddleware(logger)
	security := middleware.NewSecurityHeadersMiddleware(isSecure)
	root := middleware.Stack(
		logging.Handler,
		metrics.Middleware,
		security.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "ai_provider", cfg.AIProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
