package videos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// Store is the subset of video persistence the workflows need.
type Store interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Update(ctx context.Context, video models.Video) (models.Video, error)
	Delete(ctx context.Context, id string) error
}

// FileRemover discards locally staged uploads.
type FileRemover interface {
	Remove(path string) error
}

// PublishInput describes a new video whose files were already staged locally.
type PublishInput struct {
	OwnerID       string
	Title         string
	Description   string
	VideoPath     string
	ThumbnailPath string
}

// UpdateInput carries the editable fields of a video. ThumbnailPath is optional.
type UpdateInput struct {
	Title         string
	Description   string
	ThumbnailPath string
}

// Service runs the video workflows that span the database and the media store.
type Service struct {
	store          Store
	media          media.Gateway
	staged         FileRemover
	cleanupTimeout time.Duration
	now            func() time.Time
}

// NewService wires the video workflows.
func NewService(store Store, gateway media.Gateway, staged FileRemover, cleanupTimeout time.Duration) *Service {
	return &Service{
		store:          store,
		media:          gateway,
		staged:         staged,
		cleanupTimeout: cleanupTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Publish uploads the staged video and thumbnail and records the video. When the
// caller goes away mid-way, everything done so far is undone in reverse order
// and a ClientClosedRequest error is returned.
func (s *Service) Publish(ctx context.Context, in PublishInput) (_ models.Video, err error) {
	ctx, span := logging.StartSpan(ctx, "videos.publish")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	rb := NewRollback(s.cleanupTimeout)
	s.pushStagedRemoval(rb, in.VideoPath, in.ThumbnailPath)

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		rb.Run(ctx)
		return models.Video{}, apperrors.BadRequest("title and description are required")
	}
	if in.VideoPath == "" || in.ThumbnailPath == "" {
		rb.Run(ctx)
		return models.Video{}, apperrors.BadRequest("video file and thumbnail are required")
	}

	if err := s.checkpoint(ctx, rb, "staged"); err != nil {
		return models.Video{}, err
	}

	videoAsset, err := s.media.Upload(ctx, in.VideoPath, media.KindVideo)
	if err != nil {
		return models.Video{}, s.abort(ctx, rb, "failed to upload video file", err)
	}
	s.pushMediaDelete(rb, videoAsset.PublicID, media.KindVideo)
	if err := s.checkpoint(ctx, rb, "video uploaded"); err != nil {
		return models.Video{}, err
	}

	thumbAsset, err := s.media.Upload(ctx, in.ThumbnailPath, media.KindImage)
	if err != nil {
		return models.Video{}, s.abort(ctx, rb, "failed to upload thumbnail", err)
	}
	s.pushMediaDelete(rb, thumbAsset.PublicID, media.KindImage)
	if err := s.checkpoint(ctx, rb, "thumbnail uploaded"); err != nil {
		return models.Video{}, err
	}

	now := s.now()
	video := models.Video{
		ID:                models.NewID(),
		Title:             title,
		Description:       description,
		VideoFile:         videoAsset.URL,
		VideoPublicID:     videoAsset.PublicID,
		Thumbnail:         thumbAsset.URL,
		ThumbnailPublicID: thumbAsset.PublicID,
		Duration:          videoAsset.Duration,
		IsPublished:       true,
		Owner:             in.OwnerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// Pushed before Create: the insert may commit even when the call reports an error.
	rb.Push("delete video record", func(ctx context.Context) error {
		if err := s.store.Delete(ctx, video.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		return nil
	})
	if err := s.store.Create(ctx, video); err != nil {
		return models.Video{}, s.abort(ctx, rb, "failed to save video", err)
	}
	if err := s.checkpoint(ctx, rb, "video recorded"); err != nil {
		return models.Video{}, err
	}

	rb.Discard()
	s.removeStaged(ctx, in.VideoPath, in.ThumbnailPath)
	return video, nil
}

// Update changes the title and description of a video owned by actorID and,
// when a new thumbnail is staged, replaces the thumbnail. The previous
// thumbnail is removed from the media store only after the record is saved.
func (s *Service) Update(ctx context.Context, actorID, videoID string, in UpdateInput) (_ models.Video, err error) {
	ctx, span := logging.StartSpan(ctx, "videos.update")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	rb := NewRollback(s.cleanupTimeout)
	s.pushStagedRemoval(rb, in.ThumbnailPath)

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		rb.Run(ctx)
		return models.Video{}, apperrors.BadRequest("title and description are required")
	}

	video, err := s.ownedVideo(ctx, actorID, videoID)
	if err != nil {
		rb.Run(ctx)
		return models.Video{}, err
	}

	previousThumbnail := video.ThumbnailPublicID
	video.Title = title
	video.Description = description

	if in.ThumbnailPath != "" {
		asset, err := s.media.Upload(ctx, in.ThumbnailPath, media.KindImage)
		if err != nil {
			return models.Video{}, s.abort(ctx, rb, "failed to upload thumbnail", err)
		}
		s.pushMediaDelete(rb, asset.PublicID, media.KindImage)
		if err := s.checkpoint(ctx, rb, "thumbnail uploaded"); err != nil {
			return models.Video{}, err
		}
		video.Thumbnail = asset.URL
		video.ThumbnailPublicID = asset.PublicID
	}

	video.UpdatedAt = s.now()
	updated, err := s.store.Update(ctx, video)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			rb.Run(ctx)
			return models.Video{}, apperrors.NotFound("video not found")
		}
		return models.Video{}, s.abort(ctx, rb, "failed to update video", err)
	}

	rb.Discard()
	s.removeStaged(ctx, in.ThumbnailPath)
	if in.ThumbnailPath != "" && previousThumbnail != "" {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()
		s.deleteMedia(cleanupCtx, previousThumbnail, media.KindImage)
	}
	return updated, nil
}

// TogglePublish flips the published flag of a video owned by actorID.
func (s *Service) TogglePublish(ctx context.Context, actorID, videoID string) (models.Video, error) {
	video, err := s.ownedVideo(ctx, actorID, videoID)
	if err != nil {
		return models.Video{}, err
	}

	video.IsPublished = !video.IsPublished
	video.UpdatedAt = s.now()
	updated, err := s.store.Update(ctx, video)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, apperrors.NotFound("video not found")
		}
		return models.Video{}, apperrors.Internal("failed to update publish status", err)
	}
	return updated, nil
}

// Delete removes a video owned by actorID together with its dependent records,
// then deletes its media objects. Media failures at that point are only logged.
func (s *Service) Delete(ctx context.Context, actorID, videoID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "videos.delete")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	video, err := s.ownedVideo(ctx, actorID, videoID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, video.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.NotFound("video not found")
		}
		return apperrors.Internal("failed to delete video", err)
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
	defer cancel()
	s.deleteMedia(cleanupCtx, video.VideoPublicID, media.KindVideo)
	s.deleteMedia(cleanupCtx, video.ThumbnailPublicID, media.KindImage)
	return nil
}

func (s *Service) ownedVideo(ctx context.Context, actorID, videoID string) (models.Video, error) {
	video, err := s.store.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, apperrors.NotFound("video not found")
		}
		return models.Video{}, apperrors.Internal("failed to load video", err)
	}
	if err := authz.RequireOwner(video, actorID); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// checkpoint aborts the workflow when the caller has gone away.
func (s *Service) checkpoint(ctx context.Context, rb *Rollback, stage string) error {
	if err := ctx.Err(); err != nil {
		logging.FromContext(ctx).Info("caller left, rolling back", "stage", stage, "pending", rb.Len())
		metrics.WorkflowRollbacks.WithLabelValues("videos", "cancelled").Inc()
		rb.Run(ctx)
		return apperrors.ClientClosedRequest("request cancelled by client", err)
	}
	return nil
}

// abort rolls back after a failed step. A failure caused by the caller leaving
// is reported as such rather than as a server error.
func (s *Service) abort(ctx context.Context, rb *Rollback, message string, cause error) error {
	metrics.WorkflowRollbacks.WithLabelValues("videos", "failed").Inc()
	rb.Run(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.ClientClosedRequest("request cancelled by client", errors.Join(ctxErr, cause))
	}
	return apperrors.Internal(message, cause)
}

func (s *Service) pushStagedRemoval(rb *Rollback, paths ...string) {
	for _, path := range paths {
		if path == "" || s.staged == nil {
			continue
		}
		rb.Push("remove staged file", func(context.Context) error {
			return s.staged.Remove(path)
		})
	}
}

func (s *Service) pushMediaDelete(rb *Rollback, publicID string, kind media.Kind) {
	rb.Push("delete uploaded "+string(kind), func(ctx context.Context) error {
		return s.media.Delete(ctx, publicID, kind)
	})
}

func (s *Service) removeStaged(ctx context.Context, paths ...string) {
	if s.staged == nil {
		return
	}
	for _, path := range paths {
		if err := s.staged.Remove(path); err != nil {
			logging.FromContext(ctx).Warn("remove staged file", "path", path, "error", err)
		}
	}
}

func (s *Service) deleteMedia(ctx context.Context, publicID string, kind media.Kind) {
	if publicID == "" {
		return
	}
	if err := s.media.Delete(ctx, publicID, kind); err != nil {
		logging.FromContext(ctx).Error("delete media object", "publicId", publicID, "kind", kind, "error", err)
	}
}

func (s *Service) timeout() time.Duration {
	if s.cleanupTimeout <= 0 {
		return 30 * time.Second
	}
	return s.cleanupTimeout
}
