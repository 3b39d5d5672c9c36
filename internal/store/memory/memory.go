// Package memory provides an in-memory implementation of app.SecretStore.
// It backs tests and zero-dependency deployments; semantics (duplicate
// detection, atomic take, logical expiry) match the SQLite-backed store
// exactly.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/haukened/wisp/internal/app"
	"github.com/haukened/wisp/internal/domain"
)

var _ app.SecretStore = (*Store)(nil)

// Store keeps records in a map guarded by a single mutex. The lock is held
// across the whole check-then-delete sequence, which serializes concurrent
// Take calls for the same id so exactly one succeeds.
type Store struct {
	clock app.Clock

	mu   sync.Mutex
	recs map[string]app.Record
}

// New returns an empty in-memory store.
func New(clock app.Clock) *Store {
	return &Store{clock: clock, recs: make(map[string]app.Record)}
}

// Put inserts a new record; domain.ErrDuplicateID if id is already present.
func (s *Store) Put(_ context.Context, rec app.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recs[rec.ID]; exists {
		return domain.ErrDuplicateID
	}
	s.recs[rec.ID] = rec
	return nil
}

// Take removes and returns the record for id if it exists and has not
// expired. Expired-but-unpurged records behave identically to deleted ones.
func (s *Store) Take(_ context.Context, id string) (app.Record, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok || !now.Before(rec.ExpiresAt) {
		return app.Record{}, domain.ErrNotFound
	}
	delete(s.recs, id)
	return rec, nil
}

// DeleteExpired removes records whose expiry precedes t.
func (s *Store) DeleteExpired(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.recs {
		if rec.ExpiresAt.Before(t) {
			delete(s.recs, id)
			n++
		}
	}
	return n, nil
}

// Reconcile is a no-op: there is no secondary payload storage to orphan.
func (s *Store) Reconcile(context.Context) error { return nil }

// Len reports the number of live records. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}
