// Package local keeps the listing history in a file on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Config captures the parameters for the file-backed store.
type Config struct {
	// Path is the history file, e.g. woko_listings.csv.
	Path string `mapstructure:"path" yaml:"path"`
}

// Store reads and atomically replaces a single history file.
type Store struct {
	path string
}

// New creates a file-backed store. The file itself may not exist yet.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	info, err := os.Stat(cfg.Path)
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %s is a directory", cfg.Path)
	}
	return &Store{path: cfg.Path}, nil
}

// Location returns the file path.
func (s *Store) Location() string {
	return s.path
}

// Read returns the file content, or listing.ErrNotFound when the file is absent.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, listing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Write replaces the file through a temp file and rename so readers never
// observe a partial history.
func (s *Store) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	// #nosec G302 -- the history is meant to be committed and read by humans.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
