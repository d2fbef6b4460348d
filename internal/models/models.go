package models

import "time"

// User represents an account (and channel) within the platform.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	Password     string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OwnerID lets users participate in the shared ownership predicate.
func (u User) OwnerID() string { return u.ID }

// Video is an uploaded video and its stored media locations.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Object store keys backing VideoFile and Thumbnail.
	VideoPublicID     string `json:"-"`
	ThumbnailPublicID string `json:"-"`
}

// OwnerID returns the owning user id.
func (v Video) OwnerID() string { return v.Owner }

// Comment is a user comment on a video.
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Video     string    `json:"video"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID returns the owning user id.
func (c Comment) OwnerID() string { return c.Owner }

// Tweet is a short text post.
type Tweet struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID returns the owning user id.
func (t Tweet) OwnerID() string { return t.Owner }

// Playlist is an ordered collection of videos curated by its owner.
// Videos may contain the same id more than once.
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	Videos      []string  `json:"videos"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerID returns the owning user id.
func (p Playlist) OwnerID() string { return p.Owner }

// LikeKind tags which entity a like points at.
type LikeKind string

const (
	LikeKindVideo   LikeKind = "video"
	LikeKindComment LikeKind = "comment"
	LikeKindTweet   LikeKind = "tweet"
)

// Valid reports whether k is one of the known like targets.
func (k LikeKind) Valid() bool {
	switch k {
	case LikeKindVideo, LikeKindComment, LikeKindTweet:
		return true
	}
	return false
}

// LikeTarget identifies the liked entity.
type LikeTarget struct {
	Kind LikeKind `json:"kind"`
	ID   string   `json:"targetId"`
}

// Like is the edge between a user and a liked entity.
type Like struct {
	ID        string     `json:"id"`
	Target    LikeTarget `json:"target"`
	LikedBy   string     `json:"likedBy"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Subscription is the edge between a subscriber and a channel.
type Subscription struct {
	ID         string    `json:"id"`
	Subscriber string    `json:"subscriber"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ToggleResult reports what a toggle operation did to the edge.
type ToggleResult string

const (
	ToggleAdded   ToggleResult = "added"
	ToggleRemoved ToggleResult = "removed"
)

// SessionTokens groups the credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
