// Package memory provides a process-local alert ledger.
package memory

import (
	"context"
	"sync"
	"time"
)

// Ledger tracks alerted ids in a map.
type Ledger struct {
	mu     sync.RWMutex
	marked map[int64]time.Time
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{marked: make(map[int64]time.Time)}
}

// Seen reports whether id was marked.
func (l *Ledger) Seen(_ context.Context, id int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.marked[id]
	return ok, nil
}

// Mark records id; the first mark time is kept.
func (l *Ledger) Mark(_ context.Context, id int64, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.marked[id]; !ok {
		l.marked[id] = at.UTC()
	}
	return nil
}

// MarkedAt returns when id was first marked.
func (l *Ledger) MarkedAt(id int64) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.marked[id]
	return at, ok
}
