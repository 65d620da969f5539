// Package memory keeps the listing history in memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Store holds one history object in memory.
type Store struct {
	mu     sync.RWMutex
	data   []byte
	exists bool
	writes int
}

// NewStore creates an empty store (no history yet).
func NewStore() *Store {
	return &Store{}
}

// NewStoreWith creates a store pre-filled with data.
func NewStoreWith(data []byte) *Store {
	return &Store{data: append([]byte(nil), data...), exists: true}
}

// Location returns a pseudo URI.
func (s *Store) Location() string {
	return "memory://history.csv"
}

// Read returns a copy of the stored content.
func (s *Store) Read(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return nil, listing.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// Write stores a copy of data.
func (s *Store) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.exists = true
	s.writes++
	return nil
}

// Writes reports how many times Write succeeded.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
