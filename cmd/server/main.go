// Decoy - scam honeypot conversation server
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

	"github.com/ashureev/decoy/internal/agent"
	"github.com/ashureev/decoy/internal/api"
	"github.com/ashureev/decoy/internal/config"
	"github.com/ashureev/decoy/internal/delivery"
	"github.com/ashureev/decoy/internal/engine"
	"github.com/ashureev/decoy/internal/extract"
	"github.com/ashureev/decoy/internal/forensics"
	"github.com/ashureev/decoy/internal/metrics"
	"github.com/ashureev/decoy/internal/middleware"
	"github.com/ashureev/decoy/internal/monitor"
	"github.com/ashureev/decoy/internal/retry"
	"github.com/ashureev/decoy/internal/store"
	"github.com/ashureev/decoy/internal/transcript"
	"github.com/ashureev/decoy/internal/vocab"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "version", version, "store_backend", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Session store.
	sessions, err := openStore(ctx, cfg, logger, m)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	// Detection.
	v, err := vocab.LoadOrDefault(cfg.Engine.VocabularyFile)
	if err != nil {
		slog.Error("Failed to load vocabulary", "path", cfg.Engine.VocabularyFile, "error", err)
		os.Exit(1)
	}
	var lookup forensics.RegistrationLookup
	if cfg.Engine.CheckDomainAge {
		lookup = forensics.NewWhoisLookup(cfg.Engine.WhoisTimeout)
	}
	scorer := forensics.NewScorer(forensics.Config{
		CheckSender:    cfg.Engine.CheckSender,
		CheckDomainAge: cfg.Engine.CheckDomainAge,
		LookupTimeout:  cfg.Engine.WhoisTimeout,
		CacheTTL:       cfg.Engine.DomainCacheTTL,
	}, v, lookup, logger)

	// Reply generation.
	providers := buildGenerators(cfg.Generator, logger)
	defer func() {
		for _, closeFn := range providers.closers {
			closeFn()
		}
	}()
	cascade := agent.NewCascade(providers.generators, cfg.Generator.Timeout, logger, m)
	slog.Info("Reply providers configured", "providers", cascade.Providers())

	// Report delivery.
	policy := retry.DefaultConfig()
	policy.MaxAttempts = cfg.Delivery.MaxAttempts
	policy.InitialBackoff = cfg.Delivery.InitialBackoff
	policy.MaxBackoff = cfg.Delivery.MaxBackoff
	reporter := delivery.NewService(
		delivery.NewClient(cfg.Delivery.URL, cfg.Delivery.APIKey, cfg.Delivery.Timeout),
		policy,
		delivery.NewSpool(cfg.Delivery.FallbackDir),
		logger, m,
	)
	if cfg.Delivery.URL == "" {
		slog.Warn("CALLBACK_URL not set, final reports will be written to the fallback directory",
			"dir", cfg.Delivery.FallbackDir)
	}

	// Observers.
	globalPath := ""
	if cfg.ConversationLog.GlobalEnabled {
		globalPath = cfg.ConversationLog.GlobalPath
	}
	conversationLogger, err := transcript.New(transcript.Config{
		Enabled:    cfg.ConversationLog.Enabled,
		Dir:        cfg.ConversationLog.Dir,
		GlobalFile: globalPath,
		QueueSize:  cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	opts := []engine.Option{engine.WithObserver(conversationLogger)}
	var hub *monitor.Hub
	if cfg.Monitor.Enabled {
		hub = monitor.NewHub(monitor.Config{
			HistorySize:    cfg.Monitor.HistorySize,
			AllowedOrigins: cfg.Monitor.AllowedOrigins,
		}, logger)
		opts = append(opts, engine.WithObserver(hub))
	}

	eng := engine.New(engine.Config{
		EngageThreshold: cfg.Engine.EngageThreshold,
		MaxTurns:        cfg.Engine.MaxTurns,
		DefaultPersona:  cfg.Engine.DefaultPersona,
	}, engine.Deps{
		Extractor: extract.New(v),
		Assessor:  scorer,
		Replier:   cascade,
		Store:     sessions,
		Reporter:  reporter,
		Logger:    logger,
		Metrics:   m,
	}, opts...)

	// Initialize handlers.
	limiter := api.NewSessionLimiter(cfg.API.RatePerSecond, cfg.API.RateBurst)
	limiter.StartSweeper(ctx, time.Minute)
	handler := api.NewHandler(eng, sessions, limiter, cfg.API.MaxBodyBytes, logger)
	healthHandler := api.NewHealthHandler(sessions, version)
	for name, check := range providers.checks {
		healthHandler.AddCheck(name, check)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.API.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.API.APIKey))
		handler.RegisterRoutes(r)
		if hub != nil {
			r.Get("/ws/sessions", hub.ServeHTTP)
		}
	})

	// Create server.
	// WriteTimeout stays 0 so the monitor websocket is not cut off.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

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

// openStore builds the configured backend. The store itself falls back to
// memory when the backend does not answer a ping.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*store.Store, error) {
	storeCfg := store.Config{
		KeyPrefix: cfg.Store.KeyPrefix,
		TTL:       cfg.Store.SessionTTL,
	}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		backend, err := store.NewRedisBackend(cfg.Store.RedisURL, cfg.Store.RedisPassword)
		if err != nil {
			return nil, err
		}
		return store.New(ctx, storeCfg, backend, logger, m), nil
	case config.BackendSQLite:
		backend, err := store.NewSQLiteBackend(cfg.Store.DBPath)
		if err != nil {
			slog.Warn("Failed to open SQLite database, using memory", "path", cfg.Store.DBPath, "error", err)
			st := store.New(ctx, storeCfg, nil, logger, m)
			return st, nil
		}
		st := store.New(ctx, storeCfg, backend, logger, m)
		if !st.Degraded() {
			store.StartPurgeWorker(ctx, backend, cfg.Store.PurgeInterval, logger)
			slog.Info("Purge worker started", "interval", cfg.Store.PurgeInterval)
		}
		return st, nil
	default:
		return store.New(ctx, storeCfg, nil, logger, m), nil
	}
}
