package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

// File persists one cached value in one file.
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so readers see either the old or the new file, never a
// partial one. One writer per file is assumed.
type File[T any] struct {
	path  string
	codec Codec[T]
	log   *slog.Logger
}

// NewFile creates a file-backed store at path.
func NewFile[T any](path string, codec Codec[T]) *File[T] {
	return &File[T]{
		path:  path,
		codec: codec,
		log:   logging.Component("store").With("path", path),
	}
}

// Load reads the file. A missing, empty or undecodable file yields the
// zero value of T.
func (f *File[T]) Load() T {
	var zero T

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.log.Warn("cache unreadable; treating as empty", "error", err)
		}
		return zero
	}
	if len(data) == 0 {
		return zero
	}

	v, err := f.codec.Unmarshal(data)
	if err != nil {
		f.log.Warn("treating cache as empty", "error", &spaceweather.CacheCorruptError{Path: f.path, Err: err})
		return zero
	}
	f.log.Debug("read cache", "bytes", len(data))
	return v
}

// Save overwrites the whole file atomically.
func (f *File[T]) Save(v T) error {
	data, err := f.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}

	f.log.Debug("wrote cache", "bytes", len(data))
	return nil
}

// ModTime returns the file's modification time, or zero when it does not
// exist.
func (f *File[T]) ModTime() time.Time {
	st, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}
	}
	return st.ModTime()
}
