// Package authz holds the ownership predicate shared by every owner-gated mutation.
package authz

import (
	"strings"

	"github.com/vidtube/backend/internal/apperrors"
)

// Owned is implemented by entities that have a single owning user.
type Owned interface {
	OwnerID() string
}

// IsOwner reports whether actorID owns entity. An empty actor never owns anything.
func IsOwner(entity Owned, actorID string) bool {
	if entity == nil {
		return false
	}
	actorID = strings.TrimSpace(actorID)
	return actorID != "" && entity.OwnerID() == actorID
}

// RequireOwner returns a Forbidden error unless actorID owns entity.
func RequireOwner(entity Owned, actorID string) error {
	if !IsOwner(entity, actorID) {
		return apperrors.Forbidden("you are not allowed to modify this resource")
	}
	return nil
}
