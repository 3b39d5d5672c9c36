// Package store defines internal persistence adapter ports used by the
// higher-level SecretStore implementation. These ports isolate the concrete
// SQLite index and filesystem blob storage so they can be tested and evolved
// independently. Callers outside this package interact only with the
// app.SecretStore implementation, not these internal details.
package store

import (
	"context"
	"time"
)

// Index abstracts the metadata/index operations (backed by SQLite). It holds
// secret metadata, inlined small ciphertext, and external flags for payloads
// stored as blob files. The index row is the single point of atomicity: a
// secret exists exactly as long as its row does.
type Index interface {
	// Insert stores a new row; domain.ErrDuplicateID if id already exists.
	Insert(ctx context.Context, id string, nonce, inline []byte, external bool, size int64, createdAt, expiresAt time.Time) error

	// Take removes the unexpired row for id and returns its data in one
	// indivisible operation. Absent or expired rows yield
	// domain.ErrNotFound with state unchanged.
	Take(ctx context.Context, id string, now time.Time) (*IndexResult, error)

	// DeleteExpired removes rows expiring before t, returning records for
	// blob cleanup.
	DeleteExpired(ctx context.Context, t time.Time) ([]ExpiredRecord, error)

	// ListExternalIDs returns IDs of secrets whose payloads are stored
	// externally.
	ListExternalIDs(ctx context.Context) ([]string, error)
}

// BlobStorage abstracts large ciphertext persistence on the filesystem.
type BlobStorage interface {
	// Write persists ciphertext as an immutable blob for id.
	Write(id string, ciphertext []byte) error
	// Consume reads the blob for id and deletes it.
	Consume(id string) ([]byte, error)
	// Delete removes the blob for id.
	Delete(id string) error
	// List returns all blob IDs present in storage.
	List() ([]string, error)
}

// IndexResult is the data returned by a successful Index.Take.
type IndexResult struct {
	Nonce     []byte
	Inline    []byte // nil when External
	External  bool
	Size      int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExpiredRecord represents an expired secret needing blob cleanup.
type ExpiredRecord struct {
	ID       string
	External bool // true if payload stored in blob storage
}
