// Package store provides the concrete implementation of the application
// SecretStore port by composing lower-layer persistence ports (Index and
// BlobStorage). External packages should construct the store via New and
// interact only through the app.SecretStore interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/wisp/internal/app"
)

// Store composes an Index and BlobStorage to satisfy app.SecretStore. It
// decides whether to inline ciphertext or place it in blob storage based on
// an inline size threshold. Atomicity of Take rests entirely on the index
// row: only the caller whose index delete succeeded ever touches the blob.
type Store struct {
	index     Index
	blobs     BlobStorage
	clock     app.Clock
	inlineMax int64
}

// New returns a Store implementation of app.SecretStore.
func New(index Index, blobs BlobStorage, clock app.Clock, inlineMax int64) *Store {
	return &Store{index: index, blobs: blobs, clock: clock, inlineMax: inlineMax}
}

var _ app.SecretStore = (*Store)(nil)

// Put persists a record. Ciphertext <= inlineMax is stored inline in the
// index; larger ciphertext is written to blob storage first, so the index
// insert is the last (and visibility-granting) step.
func (s *Store) Put(ctx context.Context, rec app.Record) error {
	if s == nil || s.index == nil || s.clock == nil {
		return errors.New("store not properly initialized")
	}
	size := int64(len(rec.Ciphertext))
	var inline []byte
	external := false
	if size <= s.inlineMax {
		inline = rec.Ciphertext
	} else {
		if s.blobs == nil {
			return errors.New("blob storage not configured")
		}
		if err := s.blobs.Write(rec.ID, rec.Ciphertext); err != nil {
			return err
		}
		external = true
	}
	err := s.index.Insert(ctx, rec.ID, rec.Nonce, inline, external, size, rec.CreatedAt, rec.ExpiresAt)
	if err != nil && external {
		_ = s.blobs.Delete(rec.ID) // don't orphan the blob
	}
	return err
}

// Take removes and returns the record for id exactly once. The index delete
// is the indivisible step; expired rows behave identically to absent ones
// whether or not the janitor has purged them yet.
func (s *Store) Take(ctx context.Context, id string) (app.Record, error) {
	if s == nil || s.index == nil {
		return app.Record{}, errors.New("store not properly initialized")
	}
	now := s.clock.Now()
	res, err := s.index.Take(ctx, id, now)
	if err != nil {
		return app.Record{}, err
	}
	rec := app.Record{
		ID:        id,
		Nonce:     res.Nonce,
		CreatedAt: res.CreatedAt,
		ExpiresAt: res.ExpiresAt,
	}
	if res.External {
		data, bErr := s.blobs.Consume(id)
		if bErr != nil {
			return app.Record{}, fmt.Errorf("blob consume: %w", bErr)
		}
		rec.Ciphertext = data
		return rec, nil
	}
	rec.Ciphertext = res.Inline
	return rec, nil
}

// DeleteExpired removes expired secrets before the given time and returns
// the count. Blob files for expired records are removed best-effort.
func (s *Store) DeleteExpired(ctx context.Context, t time.Time) (int, error) {
	expired, err := s.index.DeleteExpired(ctx, t)
	if err != nil {
		return 0, err
	}
	for _, rec := range expired {
		if rec.External {
			_ = s.blobs.Delete(rec.ID) // best-effort
		}
	}
	return len(expired), nil
}

// Reconcile scans for blob orphans (blobs without an index row) and removes
// them. Orphans arise only from crashes between blob write and index insert.
func (s *Store) Reconcile(ctx context.Context) error {
	if s.index == nil || s.blobs == nil {
		return errors.New("store not properly initialized")
	}
	blobIDs, err := s.blobs.List()
	if err != nil {
		return err
	}
	extIDs, err := s.index.ListExternalIDs(ctx)
	if err != nil {
		return err
	}
	indexSet := make(map[string]struct{}, len(extIDs))
	for _, id := range extIDs {
		indexSet[id] = struct{}{}
	}
	for _, bid := range blobIDs {
		if _, ok := indexSet[bid]; !ok {
			_ = s.blobs.Delete(bid)
		}
	}
	return nil
}
