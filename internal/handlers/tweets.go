package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/models"
)

// TweetStore captures the tweet mutations used by the handlers.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	UpdateContent(ctx context.Context, tweet models.Tweet) (models.Tweet, error)
	Delete(ctx context.Context, id string) error
}

// TweetViews lists a user's tweets.
type TweetViews interface {
	UserTweets(ctx context.Context, userID string) ([]models.TweetView, error)
}

// TweetHandler implements tweet endpoints.
type TweetHandler struct {
	Tweets  TweetStore
	Views   TweetViews
	NowFunc func() time.Time
}

// Create handles POST /api/v1/tweets/create.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	content, err := decodeContent(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	tweet := models.Tweet{
		ID:        models.NewID(),
		Content:   content,
		Owner:     actor(r),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondError(ctx, w, storeError(err, "user not found", "failed to create tweet"))
		return
	}
	respond(ctx, w, http.StatusCreated, tweet, "Tweet created successfully")
}

// Mine handles GET /api/v1/tweets.
func (h TweetHandler) Mine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, actor(r))
}

// ListUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId", "user id")
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	h.list(w, r, userID)
}

func (h TweetHandler) list(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	list, err := h.Views.UserTweets(ctx, userID)
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "unable to list tweets"))
		return
	}
	if list == nil {
		list = []models.TweetView{}
	}
	respond(ctx, w, http.StatusOK, list, "Tweets fetched successfully")
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tweet, ok := h.owned(w, r)
	if !ok {
		return
	}
	content, err := decodeContent(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	tweet.Content = content
	tweet.UpdatedAt = h.now()
	updated, err := h.Tweets.UpdateContent(ctx, tweet)
	if err != nil {
		respondError(ctx, w, storeError(err, "tweet not found", "failed to update tweet"))
		return
	}
	respond(ctx, w, http.StatusOK, updated, "Tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tweet, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		respondError(ctx, w, storeError(err, "tweet not found", "failed to delete tweet"))
		return
	}
	respond(ctx, w, http.StatusOK, nil, "Tweet deleted successfully")
}

func (h TweetHandler) owned(w http.ResponseWriter, r *http.Request) (models.Tweet, bool) {
	ctx := r.Context()

	tweetID, err := pathID(r, "tweetId", "tweet id")
	if err != nil {
		respondError(ctx, w, err)
		return models.Tweet{}, false
	}
	tweet, err := h.Tweets.FindByID(ctx, tweetID)
	if err != nil {
		respondError(ctx, w, storeError(err, "tweet not found", "unable to load tweet"))
		return models.Tweet{}, false
	}
	if err := authz.RequireOwner(tweet, actor(r)); err != nil {
		respondError(ctx, w, err)
		return models.Tweet{}, false
	}
	return tweet, true
}

func (h TweetHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
