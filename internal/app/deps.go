package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

const mediaCleanupTimeout = 30 * time.Second

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup releases resources that outlive a single request.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func() error, error) {
	clock := clockwork.NewRealClock()

	sessions := auth.NewManager(auth.Options{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Clock:         clock,
	}, repositories.NewPostgresRefreshTokenStore(pool))

	prober := media.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout)
	gateway, err := media.NewS3Gateway(ctx, cfg.ObjectStore, prober)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure media gateway: %w", err)
	}
	stager := media.NewStager(cfg.UploadDir, cfg.MaxUploadBytes)

	videoRepo := repositories.NewPostgresVideoRepository(pool)

	limiter, cleanup, err := buildRateLimiter(cfg.RateLimit, clock)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	if cfg.RateLimit.RedisURL != "" {
		logger.Info("auth rate limiter backed by redis")
	}

	deps := handlers.Dependencies{
		Logger:      logger,
		DB:          db.Checker{Pool: pool},
		Verifier:    sessions,
		AuthLimiter: limiter,

		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      sessions,
		Videos:        videoRepo,
		Workflows:     videos.NewService(videoRepo, gateway, stager, mediaCleanupTimeout),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Tweets:        repositories.NewPostgresTweetRepository(pool),
		Playlists:     repositories.NewPostgresPlaylistRepository(pool),
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Views:         repositories.NewPostgresViewRepository(pool),

		Media:          gateway,
		Stager:         stager,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SecureCookies:  cfg.SecureCookies,
		CORSOrigin:     cfg.CORSOrigin,
	}
	return deps, cleanup, nil
}

func buildRateLimiter(cfg config.RateLimitConfig, clock clockwork.Clock) (middleware.RateLimiter, func() error, error) {
	if cfg.RedisURL == "" {
		limiter := middleware.NewIPRateLimiter(cfg.Requests, cfg.Window, cfg.Burst, 10*cfg.Window, clock)
		return limiter, func() error { return nil }, nil
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	return middleware.NewRedisRateLimiter(client, clock, cfg.Requests, cfg.Burst, cfg.Window), client.Close, nil
}
