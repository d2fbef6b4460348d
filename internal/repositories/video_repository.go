package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Update(ctx context.Context, video models.Video) (models.Video, error)
	IncrementViews(ctx context.Context, id, viewerID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// CommentRepository exposes data access for comments on videos.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	UpdateContent(ctx context.Context, comment models.Comment) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// TweetRepository exposes data access for tweets.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	UpdateContent(ctx context.Context, tweet models.Tweet) (models.Tweet, error)
	Delete(ctx context.Context, id string) error
}

// PlaylistRepository exposes data access for playlists and their entries.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	Update(ctx context.Context, playlist models.Playlist) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) (int64, error)
}
