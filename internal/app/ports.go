// Package app defines the application layer "ports" (interfaces) and data
// contracts that the core use-cases of Wisp depend upon. It follows a
// hexagonal (ports & adapters) design: this package declares what the core
// needs, while adapter packages (SQLite+filesystem storage, HTTP layer,
// janitor jobs) provide concrete implementations. No I/O, logging, SQL, or
// network concerns belong here.
package app

import (
	"context"
	"time"
)

// Record is the persistent form of a secret: ciphertext plus the minimal
// material needed to decrypt it. Plaintext never appears here.
type Record struct {
	ID         string    // retrieval key, canonical domain.SecretID form
	Nonce      []byte    // per-record AEAD nonce, generated at creation
	Ciphertext []byte    // sealed payload, opaque to the store
	CreatedAt  time.Time // set at insertion
	ExpiresAt  time.Time // CreatedAt + TTL; immutable once set
}

// Clock abstracts time to enable deterministic testing of TTL / expiry logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// SecretStore is the storage port for secrets. Implementations must provide
// durability and the single-consume invariant.
type SecretStore interface {
	// Put inserts a new record. Returns domain.ErrDuplicateID if the
	// identifier already exists; it must never silently overwrite.
	Put(ctx context.Context, rec Record) error

	// Take atomically checks existence and expiry and, if both hold, removes
	// and returns the record in one indivisible operation. Absent, expired,
	// or already-consumed records all yield domain.ErrNotFound with state
	// unchanged. Under concurrent calls for the same id exactly one caller
	// receives the record.
	Take(ctx context.Context, id string) (Record, error)

	// DeleteExpired removes records whose expiry precedes t and returns the
	// count removed. Pure space reclamation: Take's own expiry check is the
	// correctness gate.
	DeleteExpired(ctx context.Context, t time.Time) (int, error)

	// Reconcile performs consistency checks between index and payload
	// storage, deleting orphans. Idempotent and safe to run periodically.
	Reconcile(ctx context.Context) error
}

// CryptoEngine is the encryption port: passphrase-based key derivation and
// authenticated encryption of payloads. Satisfied by *crypto.Engine.
type CryptoEngine interface {
	// DeriveKey deterministically derives a key from the passphrase and the
	// engine's process-wide salt.
	DeriveKey(passphrase string) []byte

	// Seal encrypts plaintext under key with a fresh random nonce per call.
	Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error)

	// Open decrypts; fails with crypto.ErrAuthentication when the
	// ciphertext/nonce/key combination does not verify.
	Open(ciphertext, nonce, key []byte) ([]byte, error)
}

// Recorder receives operational counter increments. Satisfied by
// *metrics.Manager; nil-safe usage is the caller's concern.
type Recorder interface {
	Inc(name string, delta int64)
}
