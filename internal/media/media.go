package media

import (
	"context"
	"errors"
)

// Kind distinguishes the object families kept in the media store.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Valid reports whether k names a known media kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// Asset describes an object stored by a Gateway.
type Asset struct {
	URL      string
	PublicID string
	// Duration is the playback length in seconds; zero for images.
	Duration float64
}

// Gateway uploads locally staged files and deletes previously uploaded objects.
type Gateway interface {
	Upload(ctx context.Context, localPath string, kind Kind) (Asset, error)
	Delete(ctx context.Context, publicID string, kind Kind) error
}

// DurationProber reports the playback length of a local media file in seconds.
type DurationProber interface {
	Probe(ctx context.Context, localPath string) (float64, error)
}

var (
	// ErrUnavailable indicates the media store is not configured or refusing calls.
	ErrUnavailable = errors.New("media store unavailable")
	// ErrTooLarge indicates a staged file exceeded the configured size limit.
	ErrTooLarge = errors.New("media file too large")
)
