package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/middleware"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	return config.Config{
		AccessTokenSecret:  "access-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenTTL:    time.Hour,
		UploadDir:          t.TempDir(),
		MaxUploadBytes:     1 << 20,
		FFProbePath:        "ffprobe",
		FFProbeTimeout:     time.Second,
		ObjectStore:        config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
		RateLimit:          config.RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 2},
	}
}

func TestBuildDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, testConfig(t), logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() { _ = cleanup() }()

	if deps.Users == nil || deps.Sessions == nil || deps.Verifier == nil {
		t.Fatal("expected user store and session manager to be configured")
	}
	if deps.Videos == nil || deps.Workflows == nil || deps.Views == nil {
		t.Fatal("expected video components to be configured")
	}
	if deps.Comments == nil || deps.Tweets == nil || deps.Playlists == nil {
		t.Fatal("expected content repositories to be configured")
	}
	if deps.Likes == nil || deps.Subscriptions == nil {
		t.Fatal("expected edge repositories to be configured")
	}
	if deps.Media == nil || deps.Stager == nil {
		t.Fatal("expected media gateway and stager to be configured")
	}
	if deps.DB == nil {
		t.Fatal("expected database checker to be configured")
	}
	if _, ok := deps.AuthLimiter.(*middleware.IPRateLimiter); !ok {
		t.Fatalf("expected in-memory rate limiter, got %T", deps.AuthLimiter)
	}
}

func TestBuildRateLimiterUsesRedis(t *testing.T) {
	limiter, cleanup, err := buildRateLimiter(config.RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
		Burst:    2,
		RedisURL: "redis://localhost:6379/0",
	}, clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = cleanup() }()

	if _, ok := limiter.(*middleware.RedisRateLimiter); !ok {
		t.Fatalf("expected redis rate limiter, got %T", limiter)
	}
}

func TestBuildRateLimiterRejectsBadRedisURL(t *testing.T) {
	if _, _, err := buildRateLimiter(config.RateLimitConfig{RedisURL: "://nope"}, clockwork.NewFakeClock()); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestListMigrationsSortsSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_indexes.sql", "README.md", "0001_init.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.sql"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "0001_init.sql" || got[1] != "0002_indexes.sql" {
		t.Fatalf("unexpected migrations: %v", got)
	}
}

func TestSeedFileName(t *testing.T) {
	if got := seedFileName("dev"); got != "dev_seed.sql" {
		t.Fatalf("expected dev_seed.sql, got %q", got)
	}
	if got := seedFileName("custom.sql"); got != "custom.sql" {
		t.Fatalf("expected custom.sql, got %q", got)
	}
}

func TestMigrationBackoffIsCapped(t *testing.T) {
	if got := migrationBackoff(1); got != migrationBaseBackoff {
		t.Fatalf("expected base backoff, got %v", got)
	}
	if got := migrationBackoff(20); got != migrationMaxBackoff {
		t.Fatalf("expected capped backoff, got %v", got)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error without a command")
	}
	if err := Run(context.Background(), []string{"dance"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
