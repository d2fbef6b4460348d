package repositories

import (
	"errors"

	"github.com/vidtube/backend/internal/db"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrInvalid indicates the attempted write would violate a check constraint.
	ErrInvalid = errors.New("record invalid")
)

// classifyWriteError maps constraint violations onto the repository sentinels.
// It returns nil when err is not a recognised constraint violation.
func classifyWriteError(err error) error {
	switch db.PgErrorCode(err) {
	case "23505":
		return ErrConflict
	case "23503":
		return ErrNotFound
	case "23514":
		return ErrInvalid
	}
	return nil
}
