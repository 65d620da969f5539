// Package gcs keeps the listing history as an object in Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Config captures the object that holds the history.
type Config struct {
	Bucket string
	Object string
}

// Store reads and writes one GCS object.
type Store struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		object: cfg.Object,
	}, nil
}

// Location returns the gs:// URI of the object.
func (s *Store) Location() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Read downloads the object, or returns listing.ErrNotFound when it is absent.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, listing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", s.Location(), err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", s.Location(), err)
	}
	return data, nil
}

// Write uploads data, replacing the object.
func (s *Store) Write(ctx context.Context, data []byte) error {
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = "text/csv; charset=utf-8"
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
