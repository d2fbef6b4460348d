package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the user has no active refresh token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrRefreshTokenReused indicates a well-formed refresh token that no longer matches the stored one.
	ErrRefreshTokenReused = errors.New("refresh token is expired or used")
	// ErrInvalidToken indicates a credential that cannot be parsed or verified.
	ErrInvalidToken = errors.New("invalid token")
)

// RefreshTokenStore keeps the single active refresh token per user.
type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, userID, token string) error
	// ReplaceRefreshToken swaps current for next only while current is still
	// stored, returning ErrRefreshTokenReused otherwise.
	ReplaceRefreshToken(ctx context.Context, userID, current, next string) error
	RefreshToken(ctx context.Context, userID string) (string, error)
	ClearRefreshToken(ctx context.Context, userID string) error
}

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

type claims struct {
	jwt.RegisteredClaims
	Kind tokenKind `json:"typ"`
}

// Options configures a Manager.
type Options struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Clock         clockwork.Clock
}

// Manager issues, verifies and rotates signed access and refresh tokens.
type Manager struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration

	store RefreshTokenStore
	clock clockwork.Clock
}

// NewManager constructs a Manager that stores refresh tokens in store.
func NewManager(opts Options, store RefreshTokenStore) *Manager {
	if store == nil {
		panic("auth: refresh token store must not be nil")
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		accessSecret:  []byte(opts.AccessSecret),
		accessTTL:     opts.AccessTTL,
		refreshSecret: []byte(opts.RefreshSecret),
		refreshTTL:    opts.RefreshTTL,
		store:         store,
		clock:         clock,
	}
}

// Issue creates a new pair of access and refresh tokens for the user and makes the
// refresh token the user's only valid one.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	tokens, err := m.mint(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}
	if err := m.store.SaveRefreshToken(ctx, userID, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, fmt.Errorf("save refresh token: %w", err)
	}
	return tokens, nil
}

func (m *Manager) mint(userID string) (models.SessionTokens, error) {
	now := m.clock.Now().UTC()
	accessToken, accessExp, err := m.sign(userID, kindAccess, now)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refreshToken, refreshExp, err := m.sign(userID, kindRefresh, now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented token must
// match the one currently stored for its user; of several concurrent refreshes
// with the same token only one succeeds.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, string, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, "", ErrSessionNotFound
	}

	userID, err := m.verify(refreshToken, kindRefresh)
	if err != nil {
		return models.SessionTokens{}, "", err
	}

	stored, err := m.store.RefreshToken(ctx, userID)
	if err != nil {
		return models.SessionTokens{}, "", err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		return models.SessionTokens{}, "", ErrRefreshTokenReused
	}

	tokens, err := m.mint(userID)
	if err != nil {
		return models.SessionTokens{}, "", err
	}
	if err := m.store.ReplaceRefreshToken(ctx, userID, refreshToken, tokens.RefreshToken); err != nil {
		if errors.Is(err, ErrRefreshTokenReused) {
			return models.SessionTokens{}, "", err
		}
		return models.SessionTokens{}, "", fmt.Errorf("rotate refresh token: %w", err)
	}
	return tokens, userID, nil
}

// Revoke clears the stored refresh token for the user.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := m.store.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// VerifyAccess validates an access token and returns the user it was issued to.
func (m *Manager) VerifyAccess(token string) (string, error) {
	return m.verify(token, kindAccess)
}

func (m *Manager) sign(userID string, kind tokenKind, now time.Time) (string, time.Time, error) {
	secret, ttl := m.keyFor(kind)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        models.NewID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: kind,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

func (m *Manager) verify(raw string, kind tokenKind) (string, error) {
	secret, _ := m.keyFor(kind)

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if kind == kindRefresh {
				return "", ErrRefreshTokenExpired
			}
			return "", fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.Kind != kind || parsed.Subject == "" {
		return "", ErrInvalidToken
	}
	return parsed.Subject, nil
}

func (m *Manager) keyFor(kind tokenKind) ([]byte, time.Duration) {
	if kind == kindRefresh {
		return m.refreshSecret, m.refreshTTL
	}
	return m.accessSecret, m.accessTTL
}
