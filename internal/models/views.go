package models

import "time"

// OwnerSummary is the public projection of a user embedded in other view models.
type OwnerSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ChannelProfile is a user's public channel page with subscription aggregates.
type ChannelProfile struct {
	ID                        string    `json:"id"`
	Username                  string    `json:"username"`
	Email                     string    `json:"email"`
	FullName                  string    `json:"fullName"`
	Avatar                    string    `json:"avatar"`
	CoverImage                string    `json:"coverImage"`
	SubscribersCount          int64     `json:"subscribersCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
	CreatedAt                 time.Time `json:"createdAt"`
}

// VideoView is a video with its owner projected to the public summary.
type VideoView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	VideoFile   string       `json:"videoFile"`
	Thumbnail   string       `json:"thumbnail"`
	Duration    float64      `json:"duration"`
	Views       int64        `json:"views"`
	IsPublished bool         `json:"isPublished"`
	Owner       OwnerSummary `json:"owner"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// VideoDetail adds like aggregates relative to the viewing user.
type VideoDetail struct {
	VideoView
	TotalLikes    int64 `json:"totalLikes"`
	IsLikedByUser bool  `json:"isLikedByUser"`
}

// CommentView is a comment with its author summary.
type CommentView struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Video     string       `json:"video"`
	Owner     OwnerSummary `json:"owner"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// TweetView is a tweet with its author summary and like count.
type TweetView struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	Owner      OwnerSummary `json:"owner"`
	LikesCount int64        `json:"likesCount"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// PlaylistDetail is a playlist with its videos in sequence order.
type PlaylistDetail struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Videos        []VideoView  `json:"videos"`
	PlaylistOwner OwnerSummary `json:"playlistOwner"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// PlaylistSummary is the per-playlist row of a user's playlist listing.
// Thumbnail is nil when the playlist holds no videos.
type PlaylistSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Owner       OwnerSummary `json:"owner"`
	VideosCount int64        `json:"videosCount"`
	TotalViews  int64        `json:"totalViews"`
	Thumbnail   *string      `json:"thumbnail,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// SubscriberEntry is one row of a channel's subscriber list.
type SubscriberEntry struct {
	Subscriber   OwnerSummary `json:"subscriber"`
	SubscribedAt time.Time    `json:"subscribedAt"`
}

// ChannelEntry is one row of the list of channels a user subscribes to.
type ChannelEntry struct {
	Channel      OwnerSummary `json:"channel"`
	SubscribedAt time.Time    `json:"subscribedAt"`
}
