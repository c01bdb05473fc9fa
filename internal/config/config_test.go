package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "JWT_SECRET", "APP_ENV", "DB_DRIVER", "DATABASE_URL", "GEMINI_API_KEY", "GOOGLE_API_KEY", "REDIS_URL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Defaults(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api" {
		t.Fatalf("API_BASE_PATH default = %q; want /api", cfg.APIBasePath)
	}
	if cfg.Port != "5000" || cfg.DB.Driver != "sqlite" || cfg.DB.Path != "peerq.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatalf("development should get a dev signing secret")
	}
	if cfg.AI.APIKey != "" || cfg.RedisURL != "" {
		t.Fatalf("AI key and redis must be empty by default")
	}
	if cfg.IsProduction() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("MAX_BODY_BYTES", "2048")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "forum/")
	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/peerq")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("GOOGLE_API_KEY", "k2")
	t.Setenv("GEMINI_MODEL", "gemini-pro")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://peerq.dev, ,http://localhost:3000")
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("IDEMPOTENCY_TTL", "48h")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.WriteTimeout != 3*time.Second || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled {
		t.Fatalf("normalization failed: %+v", cfg)
	}
	if cfg.APIBasePath != "/forum" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.URL == "" {
		t.Fatalf("db fields unexpected: %+v", cfg.DB)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.TokenTTL != time.Hour || cfg.Auth.GuestTTL != 30*24*time.Hour {
		t.Fatalf("auth fields unexpected: %+v", cfg.Auth)
	}
	if cfg.AI.APIKey != "k2" || cfg.AI.Model != "gemini-pro" {
		t.Fatalf("ai fields unexpected: %+v", cfg.AI)
	}
	if !reflect.DeepEqual(cfg.AllowWSOrigin, []string{"https://peerq.dev", "http://localhost:3000"}) {
		t.Fatalf("ws origins = %#v", cfg.AllowWSOrigin)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("unparsable rate values should fall back to defaults: %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins = %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.IdempotencyTTL != 48*time.Hour || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("misc fields unexpected: %+v", cfg)
	}
}

func TestLoad_GeminiKeyPrecedence(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "primary")
	t.Setenv("GOOGLE_API_KEY", "secondary")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AI.APIKey != "primary" {
		t.Fatalf("GEMINI_API_KEY must win, got %q", cfg.AI.APIKey)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"timeouts", map[string]string{"IDLE_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"body bytes", map[string]string{"MAX_BODY_BYTES": "-1"}, "MAX_BODY_BYTES"},
		{"sqlite path", map[string]string{"DB_PATH": "  "}, "DB_PATH"},
		{"postgres url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"driver", map[string]string{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"prod secret", map[string]string{"APP_ENV": "production"}, "JWT_SECRET"},
		{"token ttl", map[string]string{"GUEST_JWT_TTL": "-1h"}, "GUEST_JWT_TTL"},
		{"ai timeout", map[string]string{"AI_TIMEOUT": "0s"}, "AI_TIMEOUT"},
		{"ws buffer", map[string]string{"WS_SEND_BUFFER": "0"}, "WS_SEND_BUFFER"},
		{"ws ping", map[string]string{"WS_PING_INTERVAL": "0s"}, "WS_PING_INTERVAL"},
		{"rate rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"purge schedule", map[string]string{"IDEMPOTENCY_PURGE_SCHEDULE": " "}, "IDEMPOTENCY_PURGE_SCHEDULE"},
		{"otel ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv("X_INT", "42")
	t.Setenv("X_BADINT", "4x")
	t.Setenv("X_DUR", "90s")
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_EMPTY", "")

	if getenv("X_EMPTY", "def") != "def" {
		t.Fatalf("empty value should fall back to default")
	}
	if getint("X_INT", 1) != 42 || getint("X_BADINT", 7) != 7 {
		t.Fatalf("getint mismatch")
	}
	if getdur("X_DUR", 0) != 90*time.Second {
		t.Fatalf("getdur mismatch")
	}
	if getbool("X_BOOL", true) {
		t.Fatalf("getbool should parse off as false")
	}
	if getbool("X_EMPTY", true) != true {
		t.Fatalf("getbool should default when empty")
	}
	if splitCSV("") != nil {
		t.Fatalf("splitCSV empty should be nil")
	}
	for in, want := range map[string]string{"": "/", "api": "/api", "/api/": "/api", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestDBConfig_DSN(t *testing.T) {
	if got := (DBConfig{Driver: "sqlite", Path: "data/peerq.db", URL: "ignored"}).DSN(); got != "data/peerq.db" {
		t.Fatalf("sqlite DSN = %q", got)
	}
	if got := (DBConfig{Driver: "postgres", Path: "ignored", URL: "postgres://u@h/db"}).DSN(); got != "postgres://u@h/db" {
		t.Fatalf("postgres DSN = %q", got)
	}
}
