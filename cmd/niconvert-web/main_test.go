package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/adeilh/go-niconvert/auth"
	"github.com/adeilh/go-niconvert/config"
	"github.com/adeilh/go-niconvert/httpx"
)

func TestHashTokenPrintsVerifiableHash(t *testing.T) {
	var out bytes.Buffer
	if err := hashToken(strings.NewReader("s3cret\n"), &out); err != nil {
		t.Fatalf("hashToken() error = %v", err)
	}

	parser, err := auth.NewBcryptTokenParser(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("NewBcryptTokenParser() error = %v", err)
	}
	if _, err := parser.ParseToken(context.Background(), "s3cret"); err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
}

func TestHashTokenRejectsEmptyInput(t *testing.T) {
	var out bytes.Buffer
	if err := hashToken(strings.NewReader("\n"), &out); !errors.Is(err, auth.ErrTokenInvalidInput) {
		t.Fatalf("expected ErrTokenInvalidInput, got %v", err)
	}
}

func TestRunRejectsInvalidAdminHash(t *testing.T) {
	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"
	cfg.AdminTokenHash = "not-a-bcrypt-hash"

	logger := log.New("test")
	logger.SetOutput(&bytes.Buffer{})
	if err := run(context.Background(), cfg, logger); !errors.Is(err, auth.ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestServerOptionsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ReadTimeout = 3 * time.Second
	cfg.WriteTimeout = 7 * time.Second
	cfg.RateLimit = 1
	cfg.CORSOrigins = "https://a.example"

	var got httpx.ServerOptions
	for _, opt := range serverOptions(cfg, log.New("test")) {
		opt(&got)
	}
	if got.ReadTimeout != 3*time.Second || got.WriteTimeout != 7*time.Second {
		t.Fatalf("timeouts = %s/%s", got.ReadTimeout, got.WriteTimeout)
	}
	if len(got.Middlewares) != 3 {
		t.Fatalf("expected recover, logger and rate limit middleware, got %d", len(got.Middlewares))
	}
	if len(got.Validators) != 1 || got.Renderer == nil {
		t.Fatalf("url validator or renderer missing: %+v", got)
	}
	if got.CORS == nil || len(got.CORS.AllowOrigins) != 1 || got.CORS.AllowOrigins[0] != "https://a.example" {
		t.Fatalf("CORS = %+v", got.CORS)
	}

	got = httpx.ServerOptions{}
	for _, opt := range serverOptions(config.Default(), log.New("test")) {
		opt(&got)
	}
	if got.CORS != nil || len(got.Middlewares) != 2 {
		t.Fatalf("defaults should skip CORS and rate limiting: %+v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"
	cfg.RateLimit = 5

	logger := log.New("test")
	logger.SetOutput(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, cfg, logger); !errors.Is(err, context.Canceled) {
		t.Fatalf("run() error = %v, want context.Canceled", err)
	}
}
