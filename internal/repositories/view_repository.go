package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// VideoFilter narrows and orders a video listing.
type VideoFilter struct {
	// Query matches title or description, case-insensitively.
	Query   string
	OwnerID string
	// IncludeUnpublished is honoured only together with OwnerID.
	IncludeUnpublished bool
	SortBy             string
	SortDir            models.SortDirection
	Page               models.PageRequest
}

// CommentQuery selects one page of a video's comments.
type CommentQuery struct {
	VideoID string
	SortBy  string
	SortDir models.SortDirection
	Page    models.PageRequest
}

// ViewRepository composes read-only view models by joining entities at read time.
// Aggregates are computed per statement and are not snapshot consistent with
// concurrent edge writes.
type ViewRepository interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	VideoDetail(ctx context.Context, videoID, viewerID string) (models.VideoDetail, error)
	ListVideos(ctx context.Context, filter VideoFilter) (models.Page[models.VideoView], error)
	OwnerVideos(ctx context.Context, ownerID string) ([]models.VideoView, error)
	PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistDetail, error)
	UserPlaylistsSummary(ctx context.Context, userID string) ([]models.PlaylistSummary, error)
	LikedVideos(ctx context.Context, viewerID string) ([]models.VideoView, error)
	CommentsForVideo(ctx context.Context, query CommentQuery) (models.Page[models.CommentView], error)
	SubscriberList(ctx context.Context, channelID string) ([]models.SubscriberEntry, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.ChannelEntry, error)
	UserTweets(ctx context.Context, userID string) ([]models.TweetView, error)
}
