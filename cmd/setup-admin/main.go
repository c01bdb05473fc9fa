// Command setup-admin creates the bootstrap admin account, or promotes the
// existing account with the same username or email. Running it twice is
// safe.
//
// The password comes from ADMIN_PASSWORD; when unset a random one is
// generated and printed once.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/config"
	"github.com/peerq/peerq-api/internal/observability"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/services"
	"github.com/peerq/peerq-api/internal/sysutil"
)

const (
	defaultUsername = "admin"
	defaultEmail    = "admin@peerq.com"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := observability.SetupLogging(cfg.LogLevel, cfg.LogPretty, "peerq-setup-admin", os.Stderr)

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	username := sysutil.FirstNonEmpty(os.Getenv("ADMIN_USERNAME"), defaultUsername)
	email := sysutil.FirstNonEmpty(os.Getenv("ADMIN_EMAIL"), defaultEmail)
	password := os.Getenv("ADMIN_PASSWORD")
	generated := false
	if password == "" {
		if password, err = auth.RandomPassword(); err != nil {
			return err
		}
		generated = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := &services.AuthService{DB: db}
	u, created, err := svc.EnsureAdmin(ctx, username, email, password)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	if !created {
		logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("existing account promoted to admin")
		return nil
	}
	logger.Info().Str("user_id", u.ID).Str("username", u.Username).Str("email", u.Email).Msg("admin account created")
	if generated {
		fmt.Printf("generated admin password: %s\n", password)
	}
	return nil
}
