package auth

import (
	"context"
	"sync"
)

// NewInMemoryTokenStore returns a RefreshTokenStore backed by an in-memory map.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]string)}
}

// InMemoryTokenStore implements RefreshTokenStore for tests and local development.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// SaveRefreshToken overwrites the user's refresh token.
func (s *InMemoryTokenStore) SaveRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	s.tokens[userID] = token
	s.mu.Unlock()
	return nil
}

// ReplaceRefreshToken rotates the user's refresh token if current is still stored.
func (s *InMemoryTokenStore) ReplaceRefreshToken(_ context.Context, userID, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[userID] != current || current == "" {
		return ErrRefreshTokenReused
	}
	s.tokens[userID] = next
	return nil
}

// RefreshToken returns the user's refresh token.
func (s *InMemoryTokenStore) RefreshToken(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	token, ok := s.tokens[userID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrSessionNotFound
	}
	return token, nil
}

// ClearRefreshToken forgets the user's refresh token.
func (s *InMemoryTokenStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.tokens, userID)
	s.mu.Unlock()
	return nil
}

// Has reports whether the user has a stored refresh token. Useful for tests.
func (s *InMemoryTokenStore) Has(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[userID]
	return ok
}
