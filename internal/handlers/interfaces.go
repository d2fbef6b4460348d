package handlers

import (
	"context"
	"io"
	"time"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateDetails(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// SessionManager issues, rotates and revokes credentials for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, string, error)
	Revoke(ctx context.Context, userID string) error
}

// Stager writes uploaded files to local disk until they reach the media store.
type Stager interface {
	Stage(r io.Reader, filename string) (string, error)
	Remove(path string) error
}

// VideoWorkflows runs the video operations that touch the media store.
type VideoWorkflows interface {
	Publish(ctx context.Context, in videos.PublishInput) (models.Video, error)
	Update(ctx context.Context, actorID, videoID string, in videos.UpdateInput) (models.Video, error)
	TogglePublish(ctx context.Context, actorID, videoID string) (models.Video, error)
	Delete(ctx context.Context, actorID, videoID string) error
}

// ViewCounter bumps video view counters.
type ViewCounter interface {
	IncrementViews(ctx context.Context, id, viewerID string) (int64, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ UserStore      = (repositories.UserRepository)(nil)
	_ ViewCounter    = (repositories.VideoRepository)(nil)
	_ VideoWorkflows = (*videos.Service)(nil)
)
