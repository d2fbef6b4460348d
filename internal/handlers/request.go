package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

const (
	maxJSONBody    = 1 << 20
	maxFormField   = 64 << 10
	maxFormFields  = 32
	defaultMaxFile = 512 << 20
)

func respond(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	response.OK(ctx, w, status, data, message)
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	response.Error(ctx, w, err)
}

// actor returns the authenticated caller's id, or "" for anonymous requests.
func actor(r *http.Request) string {
	id, _ := auth.ActorFromContext(r.Context())
	return id
}

// pathID reads and validates an identifier path parameter.
func pathID(r *http.Request, param, label string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, param))
	if !models.ValidID(id) {
		return "", apperrors.BadRequest("invalid " + label)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logging.FromContext(r.Context()).Warn("invalid request payload", "error", err)
		return apperrors.BadRequest("invalid request body")
	}
	return nil
}

func pageFromQuery(r *http.Request) models.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return models.PageRequest{Page: page, Limit: limit}.Normalize()
}

// storeError translates repository sentinels into client-facing errors.
func storeError(err error, notFound, internal string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return apperrors.NotFound(notFound)
	case errors.Is(err, repositories.ErrConflict):
		return apperrors.Conflict("resource already exists")
	case errors.Is(err, repositories.ErrInvalid):
		return apperrors.BadRequest(strings.TrimPrefix(err.Error(), repositories.ErrInvalid.Error()+": "))
	case errors.Is(err, context.Canceled):
		return apperrors.ClientClosedRequest("request cancelled by client", err)
	default:
		return apperrors.Internal(internal, err)
	}
}

// multipartForm holds the text fields of a multipart request and the local
// paths of the files it staged.
type multipartForm struct {
	fields map[string]string
	files  map[string]string
	stager Stager
}

func (f *multipartForm) value(name string) string {
	return strings.TrimSpace(f.fields[name])
}

// cleanup removes every staged file that was not handed to a workflow.
func (f *multipartForm) cleanup(ctx context.Context, keep ...string) {
	if f == nil || f.stager == nil {
		return
	}
	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[name] = true
	}
	for name, path := range f.files {
		if kept[name] {
			continue
		}
		if err := f.stager.Remove(path); err != nil {
			logging.FromContext(ctx).Warn("remove staged upload", "field", name, "error", err)
		}
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// readMultipart streams a multipart body, staging parts named in fileFields and
// keeping the rest as text fields. On error nothing stays staged.
func readMultipart(w http.ResponseWriter, r *http.Request, stager Stager, maxBytes int64, fileFields ...string) (*multipartForm, error) {
	if stager == nil {
		return nil, apperrors.Internal("upload staging unavailable", errors.New("stager not configured"))
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxFile
	}
	allowed := make(map[string]bool, len(fileFields))
	for _, name := range fileFields {
		allowed[name] = true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*int64(len(fileFields)+1))
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apperrors.BadRequest("expected a multipart form")
	}

	form := &multipartForm{fields: map[string]string{}, files: map[string]string{}, stager: stager}
	fail := func(err error) (*multipartForm, error) {
		form.cleanup(r.Context())
		return nil, err
	}

	for parts := 0; ; parts++ {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(apperrors.BadRequest("malformed multipart form"))
		}
		if parts >= maxFormFields {
			return fail(apperrors.BadRequest("too many form fields"))
		}

		name := part.FormName()
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFormField))
			if err != nil {
				return fail(apperrors.BadRequest("malformed multipart form"))
			}
			form.fields[name] = string(value)
			continue
		}
		if !allowed[name] {
			return fail(apperrors.BadRequest(fmt.Sprintf("unexpected file field %q", name)))
		}
		if _, dup := form.files[name]; dup {
			return fail(apperrors.BadRequest(fmt.Sprintf("duplicate file field %q", name)))
		}

		path, err := stager.Stage(part, part.FileName())
		if err != nil {
			if errors.Is(err, media.ErrTooLarge) {
				return fail(apperrors.BadRequest(name + " exceeds the upload size limit"))
			}
			if r.Context().Err() != nil {
				return fail(apperrors.ClientClosedRequest("request cancelled by client", err))
			}
			return fail(apperrors.BadRequest("could not read " + name))
		}
		form.files[name] = path
	}

	return form, nil
}
