package handlers

import (
	"context"
	"net/http"

	"github.com/vidtube/backend/internal/models"
)

// LikeToggler flips a like edge between a user and a target.
type LikeToggler interface {
	Toggle(ctx context.Context, target models.LikeTarget, userID string) (models.ToggleResult, error)
}

// LikedVideos lists the videos a user liked.
type LikedVideos interface {
	LikedVideos(ctx context.Context, viewerID string) ([]models.VideoView, error)
}

// LikeHandler implements the like toggles and the liked-videos listing.
type LikeHandler struct {
	Likes LikeToggler
	Views LikedVideos
}

// ToggleVideo handles POST /api/v1/likes/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeKindVideo, "videoId", "video")
}

// ToggleComment handles POST /api/v1/likes/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeKindComment, "commentId", "comment")
}

// ToggleTweet handles POST /api/v1/likes/t/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeKindTweet, "tweetId", "tweet")
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, kind models.LikeKind, param, label string) {
	ctx := r.Context()

	id, err := pathID(r, param, label+" id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Likes.Toggle(ctx, models.LikeTarget{Kind: kind, ID: id}, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, label+" not found", "unable to toggle like"))
		return
	}

	message := "Liked " + label
	if result == models.ToggleRemoved {
		message = "Unliked " + label
	}
	respond(ctx, w, http.StatusOK, toggleResponse{Result: result, Active: result == models.ToggleAdded}, message)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.Views.LikedVideos(ctx, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "videos not found", "unable to list liked videos"))
		return
	}
	if list == nil {
		list = []models.VideoView{}
	}
	respond(ctx, w, http.StatusOK, list, "Liked videos fetched successfully")
}

type toggleResponse struct {
	Result models.ToggleResult `json:"result"`
	Active bool                `json:"active"`
}
