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
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/agent-activity-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/agent-activity-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/agent-activity-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/agent-activity-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/agent-activity-backend/internal/adapters/secondary/slackdir"
	"github.com/lorrc/agent-activity-backend/internal/auth"
	"github.com/lorrc/agent-activity-backend/internal/config"
	"github.com/lorrc/agent-activity-backend/internal/core/services"
	"github.com/lorrc/agent-activity-backend/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Run Migrations (opt-in, deployments usually run them out of band)
	if cfg.Database.RunMigrations {
		if err := runMigrations(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	// 4. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply database configuration
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 5. Resolve the operating timezone for shift classification
	opsLocation, err := time.LoadLocation(cfg.Slack.Timezone)
	if err != nil {
		logger.Error("failed to load operating timezone", "timezone", cfg.Slack.Timezone, "error", err)
		os.Exit(1)
	}

	// 6. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	hub := websocket.NewHub(logger)
	go hub.Run()

	// 7. Initialize Rate Limiter (admin API only)
	var generalRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 8. Dependency Injection (Wiring the Hexagon)

	// Error Handler
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Repositories (Secondary Adapters)
	agentRepo := postgres.NewAgentRepository(pool)
	activityRepo := postgres.NewActivityRepository(pool)

	// Slack directory (Secondary Adapter)
	directoryClient := slackdir.NewDirectoryClient(cfg.Slack.BotToken, cfg.Slack.DirectoryTimeout)

	// Services (Core)
	classifier := services.NewTimeClassifier(opsLocation)
	agentDirectory := services.NewAgentDirectoryService(agentRepo, directoryClient, cfg.Slack.DirectoryTimeout)
	correlator := services.NewActivityCorrelatorService(activityRepo, classifier, hub)
	adminService := services.NewAgentAdminService(agentRepo)

	// Handlers (Primary Adapters)
	verifier := httpAdapter.NewSlackVerifier(cfg.Slack.SigningSecret, cfg.Slack.SignatureMaxAge)
	webhookHandler := httpAdapter.NewWebhookHandler(
		verifier,
		agentDirectory,
		correlator,
		cfg.Slack.OpsChannelID,
		cfg.Slack.TakeReaction,
		logger,
	)
	agentHandler := httpAdapter.NewAgentHandler(adminService, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)

	// 9. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// Slack webhook ingress. Never rate limited: an authenticated delivery
	// must be answered 200, anything else makes Slack retry and amplify the
	// load.
	r.Post("/webhooks/slack/events", webhookHandler.HandleEvent)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		corsOrigins := cfg.Server.CORSAllowedOrigins
		if cfg.IsDevelopment() {
			corsOrigins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		if generalRateLimiter != nil {
			r.Use(generalRateLimiter.Middleware)
		}

		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			agentHandler.RegisterRoutes(r)
		})
	})

	// 10. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// runMigrations applies any pending schema migrations before the pool opens.
func runMigrations(sourceURL, databaseURL string) error {
	mig, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = mig.Close()
	}()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
