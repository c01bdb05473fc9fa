// Command server runs the PeerQ HTTP API.
//
//	@title						PeerQ API
//	@version					1.0
//	@description				Community Q&A with votes, accepted answers, notifications and an AI chat assistant.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/peerq/peerq-api/internal/assistant"
	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/config"
	httpapi "github.com/peerq/peerq-api/internal/http"
	"github.com/peerq/peerq-api/internal/jobs"
	"github.com/peerq/peerq-api/internal/observability"
	"github.com/peerq/peerq-api/internal/realtime"
	"github.com/peerq/peerq-api/internal/repo"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.SetupLogging(cfg.LogLevel, cfg.LogPretty && !cfg.IsProduction(), cfg.OTEL.ServiceName, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version, cfg.Env)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer flush(logger, "tracing", shutdownTracing)

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	hub := realtime.NewHub(cfg.WSSendBuffer)
	defer func() {
		logger.Info().Int("ws_connections", hub.Connections()).Msg("closing live connections")
		hub.Close()
	}()

	var broker realtime.Broker = hub
	if cfg.RedisURL != "" {
		rb, err := realtime.NewRedisBroker(ctx, cfg.RedisURL, hub)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rb.Close()
		go func() {
			if err := rb.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("redis fan-out stopped")
			}
		}()
		broker = rb
	}

	var generator assistant.Generator
	if cfg.AI.APIKey != "" {
		g, err := assistant.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		defer g.Close()
		generator = g
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set; chat replies use canned answers")
	}

	scheduler := jobs.New(db)
	if err := scheduler.RegisterIdempotencyPurge(cfg.PurgeSchedule); err != nil {
		return fmt.Errorf("schedule idempotency purge: %w", err)
	}
	scheduler.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		scheduler.Stop(sctx)
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Config:    cfg,
		Tokens:    auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.GuestTTL),
		Hub:       hub,
		Broker:    broker,
		Generator: generator,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Str("db", cfg.DB.Driver).
			Bool("redis", cfg.RedisURL != "").
			Str("version", version).
			Msg("peerq api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	// Live sockets are hijacked and ignored by Shutdown; the deferred
	// hub.Close ends them.
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func flush(logger zerolog.Logger, what string, fn observability.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error().Err(err).Str("component", what).Msg("shutdown failed")
	}
}
