package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Stager writes incoming uploads to a local directory before they are sent to
// the media store.
type Stager struct {
	dir      string
	maxBytes int64
}

// NewStager returns a Stager writing into dir, rejecting files larger than maxBytes.
// A non-positive maxBytes disables the limit.
func NewStager(dir string, maxBytes int64) *Stager {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	return &Stager{dir: dir, maxBytes: maxBytes}
}

// Stage copies r into a new file named after the original filename's extension
// and returns its path. Partially written files are removed on error.
func (s *Stager) Stage(r io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	file, err := os.CreateTemp(s.dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	path := file.Name()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}

	written, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		_ = s.Remove(path)
		return "", fmt.Errorf("write staged file: %w", copyErr)
	case closeErr != nil:
		_ = s.Remove(path)
		return "", fmt.Errorf("close staged file: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		_ = s.Remove(path)
		return "", ErrTooLarge
	case written == 0:
		_ = s.Remove(path)
		return "", fmt.Errorf("staged file %q is empty", filename)
	}

	return path, nil
}

// Remove deletes a staged file. Removing a file that is already gone succeeds.
func (s *Stager) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}
