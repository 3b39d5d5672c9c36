// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers. Each maps to exactly
// one entry of the service error taxonomy; the HTTP layer translates them to
// status codes once, at the boundary.
var (
	// ErrInvalidInput indicates an empty secret or passphrase. Recoverable by
	// the caller resubmitting.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the secret is absent, expired, or already
	// consumed. The three causes are indistinguishable on purpose.
	ErrNotFound = errors.New("secret not found")

	// ErrInvalidPassphrase indicates decryption authentication failed. The
	// redemption attempt has already consumed the secret by the time this is
	// returned.
	ErrInvalidPassphrase = errors.New("invalid passphrase")

	// ErrDuplicateID indicates an identifier collision on insert. Retried a
	// bounded number of times at creation; never surfaced to callers directly.
	ErrDuplicateID = errors.New("duplicate secret id")

	// ErrInternal indicates an unrecoverable service-side failure (exhausted
	// ID retries, store errors). Logged for operators, never retried.
	ErrInternal = errors.New("internal error")
)
