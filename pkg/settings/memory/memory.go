// Package memory provides an in-process settings.Store. Settings are lost
// on restart; use the postgres or sqlite store to keep them.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/voxorder/pkg/settings"
)

// Store keeps one settings snapshot behind a mutex.
type Store struct {
	mu      sync.RWMutex
	current *settings.Settings
}

var _ settings.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Current returns a copy of the saved settings.
func (s *Store) Current(ctx context.Context) (*settings.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, settings.ErrNotFound
	}
	return s.current.Clone(), nil
}

// Save validates and stores a copy of st.
func (s *Store) Save(ctx context.Context, st *settings.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := st.Validate(); err != nil {
		return err
	}
	cp := st.Clone()
	cp.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.current = cp
	s.mu.Unlock()
	return nil
}

// Update applies fn under the write lock.
func (s *Store) Update(ctx context.Context, fn func(*settings.Settings) error) (*settings.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := settings.Default()
	if s.current != nil {
		next = s.current.Clone()
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.current = next
	return next.Clone(), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
