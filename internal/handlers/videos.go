package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

// VideoViews reads composed video listings.
type VideoViews interface {
	ListVideos(ctx context.Context, filter repositories.VideoFilter) (models.Page[models.VideoView], error)
	VideoDetail(ctx context.Context, videoID, viewerID string) (models.VideoDetail, error)
	OwnerVideos(ctx context.Context, ownerID string) ([]models.VideoView, error)
}

// VideoHandler provides endpoints for publishing, browsing and managing videos.
type VideoHandler struct {
	Views          VideoViews
	Workflows      VideoWorkflows
	Counter        ViewCounter
	Stager         Stager
	MaxUploadBytes int64
}

// List handles GET /api/v1/videos. Drafts are listed only when a signed-in
// user asks for their own channel.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := repositories.VideoFilter{
		Query:   q.Get("query"),
		SortBy:  q.Get("sortBy"),
		SortDir: models.ParseSortDirection(strings.ToLower(q.Get("sortType"))),
		Page:    pageFromQuery(r),
	}
	if userID := strings.TrimSpace(q.Get("userId")); userID != "" {
		if !models.ValidID(userID) {
			respondError(ctx, w, apperrors.BadRequest("invalid user id"))
			return
		}
		filter.OwnerID = userID
		filter.IncludeUnpublished = userID == actor(r)
	}

	page, err := h.Views.ListVideos(ctx, filter)
	if err != nil {
		respondError(ctx, w, storeError(err, "videos not found", "unable to list videos"))
		return
	}
	respond(ctx, w, http.StatusOK, page, "Videos fetched successfully")
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	detail, err := h.Views.VideoDetail(ctx, videoID, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", "unable to load video"))
		return
	}
	respond(ctx, w, http.StatusOK, detail, "Video fetched successfully")
}

// Mine handles GET /api/v1/videos/u/user-videos.
func (h VideoHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.Views.OwnerVideos(ctx, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "videos not found", "unable to list videos"))
		return
	}
	if list == nil {
		list = []models.VideoView{}
	}
	respond(ctx, w, http.StatusOK, list, "User videos fetched successfully")
}

// AddView handles POST /api/v1/videos/add-view/{videoId}.
func (h VideoHandler) AddView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	views, err := h.Counter.IncrementViews(ctx, videoID, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", "unable to record view"))
		return
	}
	respond(ctx, w, http.StatusOK, map[string]int64{"views": views}, "View added")
}

// Upload handles POST /api/v1/videos/upload-video.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	form, err := readMultipart(w, r, h.Stager, h.MaxUploadBytes, "videoFile", "thumbnail")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer form.cleanup(ctx)

	video, err := h.Workflows.Publish(ctx, videos.PublishInput{
		OwnerID:       actor(r),
		Title:         form.value("title"),
		Description:   form.value("description"),
		VideoPath:     form.files["videoFile"],
		ThumbnailPath: form.files["thumbnail"],
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respond(ctx, w, http.StatusCreated, video, "Video uploaded successfully")
}

// UpdateVideo handles PATCH /api/v1/videos/update-video/{videoId}. The body is
// either JSON or a multipart form carrying a replacement thumbnail.
func (h VideoHandler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var in videos.UpdateInput
	if isMultipart(r) {
		form, err := readMultipart(w, r, h.Stager, h.MaxUploadBytes, "thumbnail")
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		defer form.cleanup(ctx)
		in = videos.UpdateInput{
			Title:         form.value("title"),
			Description:   form.value("description"),
			ThumbnailPath: form.files["thumbnail"],
		}
	} else {
		var req updateVideoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, err)
			return
		}
		in = videos.UpdateInput{Title: req.Title, Description: req.Description}
	}

	video, err := h.Workflows.Update(ctx, actor(r), videoID, in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respond(ctx, w, http.StatusOK, video, "Video updated successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle-publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	video, err := h.Workflows.TogglePublish(ctx, actor(r), videoID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respond(ctx, w, http.StatusOK, video, "Publish status toggled")
}

// Delete handles DELETE /api/v1/videos/delete-video/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Workflows.Delete(ctx, actor(r), videoID); err != nil {
		respondError(ctx, w, err)
		return
	}
	respond(ctx, w, http.StatusOK, nil, "Video deleted successfully")
}

type updateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
