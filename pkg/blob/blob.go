// Package blob stores original uploaded files on an afero filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/papercomputeco/docchat/pkg/errs"
)

// Store reads and writes blobs addressed by slash-separated keys.
type Store struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewStore returns a store over fsys. Keys resolve relative to its root.
func NewStore(fsys afero.Fs, logger *slog.Logger) *Store {
	return &Store{fs: fsys, logger: logger}
}

// NewOSStore returns a store rooted at dir on the local filesystem.
func NewOSStore(dir string, logger *slog.Logger) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir), logger)
}

// NewMemStore returns a store held in memory.
func NewMemStore(logger *slog.Logger) *Store {
	return NewStore(afero.NewMemMapFs(), logger)
}

// Key builds the storage key of an upload: user-<owner>/<uuid>-<basename>.
func Key(ownerID, fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "upload"
	}
	return fmt.Sprintf("user-%s/%s-%s", ownerID, uuid.NewString(), base)
}

// ValidateKey rejects keys that are empty, absolute, or escape the root.
func ValidateKey(key string) error {
	if key == "" {
		return errs.Validation("blob key is empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return errs.Validation("blob key %q must be relative", key)
	}
	if !fs.ValidPath(key) || path.Clean(key) != key {
		return errs.Validation("blob key %q is not a clean path", key)
	}
	return nil
}

// Put writes data under key, creating parent directories.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(path.Dir(key), 0o700); err != nil {
		return errs.Store("creating blob directory", err)
	}
	if err := afero.WriteFile(s.fs, key, data, 0o600); err != nil {
		return errs.Store("writing blob", err)
	}

	s.logger.Debug("blob stored", "key", key, "bytes", len(data))
	return nil
}

// Get reads the blob under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", errs.ErrNotFound, key)
	}
	if err != nil {
		return nil, errs.Store("reading blob", err)
	}
	return data, nil
}

// Delete removes the blob under key. Deleting a missing blob succeeds.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	err := s.fs.Remove(key)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Store("deleting blob", err)
	}

	s.logger.Debug("blob deleted", "key", key)
	return nil
}
