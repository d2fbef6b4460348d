package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
)

// PostgresRefreshTokenStore keeps each user's single active refresh token in the users table.
type PostgresRefreshTokenStore struct {
	pool db.Pool
}

// NewPostgresRefreshTokenStore constructs a refresh token store backed by PostgreSQL.
func NewPostgresRefreshTokenStore(pool db.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{pool: pool}
}

// SaveRefreshToken overwrites the stored refresh token for the user.
func (s *PostgresRefreshTokenStore) SaveRefreshToken(ctx context.Context, userID, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $2
        WHERE id = $1
    `, userID, token)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// ReplaceRefreshToken rotates the stored token in a single conditional update, so
// only one of several concurrent rotations of the same token wins.
func (s *PostgresRefreshTokenStore) ReplaceRefreshToken(ctx context.Context, userID, current, next string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $3
        WHERE id = $1 AND refresh_token = $2
    `, userID, current, next)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrRefreshTokenReused
	}

	return nil
}

// RefreshToken loads the stored refresh token for the user.
func (s *PostgresRefreshTokenStore) RefreshToken(ctx context.Context, userID string) (string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var token *string
	if err := conn.QueryRow(ctx, `
        SELECT refresh_token
        FROM users
        WHERE id = $1
    `, userID).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", auth.ErrSessionNotFound
		}
		return "", fmt.Errorf("select refresh token: %w", err)
	}

	if token == nil || *token == "" {
		return "", auth.ErrSessionNotFound
	}
	return *token, nil
}

// ClearRefreshToken removes the stored refresh token for the user.
func (s *PostgresRefreshTokenStore) ClearRefreshToken(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = NULL
        WHERE id = $1
    `, userID)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

var _ auth.RefreshTokenStore = (*PostgresRefreshTokenStore)(nil)
