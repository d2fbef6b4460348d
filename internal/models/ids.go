package models

import "github.com/google/uuid"

// NewID returns a time-ordered identifier so that sorting by id follows creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ValidID reports whether s is a well-formed identifier.
func ValidID(s string) bool {
	return uuid.Validate(s) == nil
}
