package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/studyhive/studyhive/internal/api"
	"github.com/studyhive/studyhive/internal/auth"
	"github.com/studyhive/studyhive/internal/chat"
	"github.com/studyhive/studyhive/internal/config"
	"github.com/studyhive/studyhive/internal/handlers"
	"github.com/studyhive/studyhive/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize durable store: PostgreSQL when configured, SQLite otherwise
	var durable store.Store
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		durable = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		durable = sqliteStore
		logger.Info().Msg("using SQLite store")
	}

	// Initialize Redis history cache
	var cache *store.RedisCache
	if cfg.RedisURL != "" {
		var err error
		cache, err = store.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer cache.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Create the chat service. The cache is attached only when configured so
	// the service sees a plain nil, not a typed nil inside the interface.
	chatCfg := chat.Config{
		Store:        durable,
		Logger:       logger,
		HistoryLimit: cfg.HistoryLimit,
		TypingTTL:    cfg.TypingTTL,
	}
	if cache != nil {
		chatCfg.Cache = cache
	}
	chatSvc := chat.NewService(chatCfg)

	// Create router
	verifier := auth.NewVerifier(cfg.JWTSecret)
	h := handlers.NewHandler(durable, cache, chatSvc, verifier, cfg.AllowedOrigins, logger)
	router := api.NewRouter(logger, h, cfg.AllowedOrigins)

	// Create server. No WriteTimeout: it would kill long-lived WebSocket
	// connections; per-write deadlines live in the client pumps instead.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting StudyHive chat gateway")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Drain in-flight message persists before closing the stores
	if err := chatSvc.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("chat service drain timed out")
	}

	logger.Info().Msg("server stopped")
}
