package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/models"
)

// PlaylistStore captures the playlist mutations used by the handlers.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	Update(ctx context.Context, playlist models.Playlist) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) (int64, error)
}

// PlaylistViews composes playlist read models.
type PlaylistViews interface {
	PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistDetail, error)
	UserPlaylistsSummary(ctx context.Context, userID string) ([]models.PlaylistSummary, error)
}

// PlaylistHandler implements playlist endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	Views     PlaylistViews
	NowFunc   func() time.Time
}

// Create handles POST /api/v1/playlists/create.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	name, description := strings.TrimSpace(req.Name), strings.TrimSpace(req.Description)
	if name == "" || description == "" {
		respondError(ctx, w, apperrors.BadRequest("name and description are required"))
		return
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          models.NewID(),
		Name:        name,
		Description: description,
		Owner:       actor(r),
		Videos:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondError(ctx, w, storeError(err, "user not found", "failed to create playlist"))
		return
	}
	respond(ctx, w, http.StatusCreated, playlist, "Playlist created successfully")
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	detail, err := h.Views.PlaylistDetail(ctx, playlistID)
	if err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", "unable to load playlist"))
		return
	}
	respond(ctx, w, http.StatusOK, detail, "Playlist fetched successfully")
}

// UserPlaylists handles GET /api/v1/playlists/p/{userId}.
func (h PlaylistHandler) UserPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := pathID(r, "userId", "user id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.summaries(w, r, userID)
}

// Mine handles GET /api/v1/playlists/me.
func (h PlaylistHandler) Mine(w http.ResponseWriter, r *http.Request) {
	h.summaries(w, r, actor(r))
}

func (h PlaylistHandler) summaries(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	list, err := h.Views.UserPlaylistsSummary(ctx, userID)
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "unable to list playlists"))
		return
	}
	if list == nil {
		list = []models.PlaylistSummary{}
	}
	respond(ctx, w, http.StatusOK, list, "Playlists fetched successfully")
}

// AddVideo handles POST /api/v1/playlists/add/{playlistId}/{videoId}.
// A video may appear in a playlist more than once.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, videoID, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.AddVideo(ctx, playlist.ID, videoID); err != nil {
		respondError(ctx, w, storeError(err, "video not found", "failed to add video to playlist"))
		return
	}
	h.respondPlaylist(w, r, playlist.ID, "Video added to playlist")
}

// RemoveVideo handles DELETE /api/v1/playlists/remove/{playlistId}/{videoId}.
// Every occurrence of the video is removed.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, videoID, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}

	if _, err := h.Playlists.RemoveVideo(ctx, playlist.ID, videoID); err != nil {
		respondError(ctx, w, storeError(err, "video not found in playlist", "failed to remove video from playlist"))
		return
	}
	h.respondPlaylist(w, r, playlist.ID, "Video removed from playlist")
}

// Update handles PATCH /api/v1/playlists/{playlistId}. Omitted fields keep their value.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	name, description := strings.TrimSpace(req.Name), strings.TrimSpace(req.Description)
	if name == "" && description == "" {
		respondError(ctx, w, apperrors.BadRequest("name or description is required"))
		return
	}

	playlist, err := h.owned(ctx, playlistID, actor(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if name != "" {
		playlist.Name = name
	}
	if description != "" {
		playlist.Description = description
	}
	playlist.UpdatedAt = h.now()

	updated, err := h.Playlists.Update(ctx, playlist)
	if err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", "failed to update playlist"))
		return
	}
	respond(ctx, w, http.StatusOK, updated, "Playlist updated successfully")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	playlist, err := h.owned(ctx, playlistID, actor(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", "failed to delete playlist"))
		return
	}
	respond(ctx, w, http.StatusOK, nil, "Playlist deleted successfully")
}

func (h PlaylistHandler) owned(ctx context.Context, playlistID, actorID string) (models.Playlist, error) {
	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, storeError(err, "playlist not found", "unable to load playlist")
	}
	if err := authz.RequireOwner(playlist, actorID); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

// ownedEntry resolves the playlist and video path parameters and gates on ownership.
func (h PlaylistHandler) ownedEntry(w http.ResponseWriter, r *http.Request) (models.Playlist, string, bool) {
	ctx := r.Context()

	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		respondError(ctx, w, err)
		return models.Playlist{}, "", false
	}
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		respondError(ctx, w, err)
		return models.Playlist{}, "", false
	}

	playlist, err := h.owned(ctx, playlistID, actor(r))
	if err != nil {
		respondError(ctx, w, err)
		return models.Playlist{}, "", false
	}
	return playlist, videoID, true
}

func (h PlaylistHandler) respondPlaylist(w http.ResponseWriter, r *http.Request, playlistID, message string) {
	ctx := r.Context()

	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", "unable to load playlist"))
		return
	}
	respond(ctx, w, http.StatusOK, playlist, message)
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
