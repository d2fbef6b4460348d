package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// CommentStore captures the comment mutations used by the handlers.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	UpdateContent(ctx context.Context, comment models.Comment) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// CommentViews pages through a video's comments.
type CommentViews interface {
	CommentsForVideo(ctx context.Context, query repositories.CommentQuery) (models.Page[models.CommentView], error)
}

// CommentHandler implements comment endpoints.
type CommentHandler struct {
	Comments CommentStore
	Views    CommentViews
	NowFunc  func() time.Time
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.Views.CommentsForVideo(ctx, repositories.CommentQuery{
		VideoID: videoID,
		SortBy:  q.Get("sortBy"),
		SortDir: models.ParseSortDirection(strings.ToLower(q.Get("sortType"))),
		Page:    pageFromQuery(r),
	})
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", "unable to list comments"))
		return
	}
	respond(ctx, w, http.StatusOK, page, "Comments fetched successfully")
}

// Add handles POST /api/v1/comments/add/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	content, err := decodeContent(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	comment := models.Comment{
		ID:        models.NewID(),
		Content:   content,
		Video:     videoID,
		Owner:     actor(r),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		respondError(ctx, w, storeError(err, "video not found", "failed to add comment"))
		return
	}
	respond(ctx, w, http.StatusCreated, comment, "Comment added successfully")
}

// Update handles PATCH /api/v1/comments/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.owned(w, r)
	if !ok {
		return
	}
	content, err := decodeContent(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	comment.Content = content
	comment.UpdatedAt = h.now()
	updated, err := h.Comments.UpdateContent(ctx, comment)
	if err != nil {
		respondError(ctx, w, storeError(err, "comment not found", "failed to update comment"))
		return
	}
	respond(ctx, w, http.StatusOK, updated, "Comment updated successfully")
}

// Delete handles DELETE /api/v1/comments/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		respondError(ctx, w, storeError(err, "comment not found", "failed to delete comment"))
		return
	}
	respond(ctx, w, http.StatusOK, nil, "Comment deleted successfully")
}

func (h CommentHandler) owned(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()

	commentID, err := pathID(r, "commentId", "comment id")
	if err != nil {
		respondError(ctx, w, err)
		return models.Comment{}, false
	}
	comment, err := h.Comments.FindByID(ctx, commentID)
	if err != nil {
		respondError(ctx, w, storeError(err, "comment not found", "unable to load comment"))
		return models.Comment{}, false
	}
	if err := authz.RequireOwner(comment, actor(r)); err != nil {
		respondError(ctx, w, err)
		return models.Comment{}, false
	}
	return comment, true
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type contentRequest struct {
	Content string `json:"content"`
}

// decodeContent reads the {"content": ...} body shared by comments and tweets.
func decodeContent(w http.ResponseWriter, r *http.Request) (string, error) {
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return "", apperrors.BadRequest("content is required")
	}
	return content, nil
}
