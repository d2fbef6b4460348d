package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// LikeRepository toggles like edges between users and videos, comments or tweets.
type LikeRepository interface {
	Toggle(ctx context.Context, target models.LikeTarget, userID string) (models.ToggleResult, error)
}

// SubscriptionRepository toggles subscription edges between users and channels.
type SubscriptionRepository interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (models.ToggleResult, error)
}
