package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

var likeTargetTables = map[models.LikeKind]string{
	models.LikeKindVideo:   "videos",
	models.LikeKindComment: "comments",
	models.LikeKindTweet:   "tweets",
}

// PostgresLikeRepository provides PostgreSQL-backed persistence for like edges.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// Toggle removes the user's like on target if it exists and creates it otherwise.
// The unique (target_kind, target_id, liked_by) key guarantees at most one edge
// even when toggles race.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, target models.LikeTarget, userID string) (models.ToggleResult, error) {
	table, ok := likeTargetTables[target.Kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown like target %q", ErrInvalid, target.Kind)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if target.Kind == models.LikeKindVideo {
		err = requireVisibleVideo(ctx, conn, target.ID, userID)
	} else {
		err = requireRow(ctx, conn, table, target.ID)
	}
	if err != nil {
		return "", err
	}

	tag, err := conn.Exec(ctx, `
        DELETE FROM likes
        WHERE target_kind = $1 AND target_id = $2 AND liked_by = $3
    `, string(target.Kind), target.ID, userID)
	if err != nil {
		return "", fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return models.ToggleRemoved, nil
	}

	if _, err := conn.Exec(ctx, `
        INSERT INTO likes (id, target_kind, target_id, liked_by, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (target_kind, target_id, liked_by) DO NOTHING
    `, models.NewID(), string(target.Kind), target.ID, userID, time.Now().UTC()); err != nil {
		if mapped := classifyWriteError(err); mapped != nil {
			return "", mapped
		}
		return "", fmt.Errorf("insert like: %w", err)
	}

	return models.ToggleAdded, nil
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Toggle subscribes subscriberID to channelID, or unsubscribes when already subscribed.
func (r *PostgresSubscriptionRepository) Toggle(ctx context.Context, subscriberID, channelID string) (models.ToggleResult, error) {
	if subscriberID == channelID {
		return "", fmt.Errorf("%w: cannot subscribe to own channel", ErrInvalid)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := requireRow(ctx, conn, "users", channelID); err != nil {
		return "", err
	}

	tag, err := conn.Exec(ctx, `
        DELETE FROM subscriptions
        WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID)
	if err != nil {
		return "", fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return models.ToggleRemoved, nil
	}

	if _, err := conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (subscriber_id, channel_id) DO NOTHING
    `, models.NewID(), subscriberID, channelID, time.Now().UTC()); err != nil {
		if mapped := classifyWriteError(err); mapped != nil {
			return "", mapped
		}
		return "", fmt.Errorf("insert subscription: %w", err)
	}

	return models.ToggleAdded, nil
}

// requireRow returns ErrNotFound unless table holds a row with id. table is always
// a package constant.
func requireRow(ctx context.Context, conn *pgxpool.Conn, table, id string) error {
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s exists: %w", table, err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// requireVisibleVideo reports ErrNotFound for drafts of other users.
func requireVisibleVideo(ctx context.Context, conn *pgxpool.Conn, videoID, viewerID string) error {
	var visible bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM videos
            WHERE id = $1 AND (is_published OR owner_id = $2)
        )
    `, videoID, viewerID).Scan(&visible); err != nil {
		return fmt.Errorf("check video visible: %w", err)
	}
	if !visible {
		return ErrNotFound
	}
	return nil
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
