// Package app contains the application orchestration layer for Wisp. It
// wires the crypto engine and storage ports together without performing any
// I/O itself.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/wisp/internal/crypto"
	"github.com/haukened/wisp/internal/domain"
	"github.com/haukened/wisp/internal/metrics"
)

// ErrSizeExceeded indicates the secret payload exceeds the configured maximum.
var ErrSizeExceeded = errors.New("size exceeded")

// maxIDAttempts bounds the duplicate-identifier retry loop at creation.
// Collisions are astronomically unlikely with 128-bit random IDs, so a small
// bound suffices; exhausting it is an internal error.
const maxIDAttempts = 3

// Service orchestrates secret creation and one-time redemption using the
// injected store, crypto engine, and clock. Per secret the state machine is
// NONE -> CREATED -> {REDEEMED, EXPIRED}, both terminal.
type Service struct {
	Store    SecretStore
	Crypto   CryptoEngine
	Clock    Clock
	TTL      time.Duration // lifespan of an unredeemed secret
	MaxBytes int64         // maximum plaintext size, 0 disables the check
	Metrics  Recorder      // optional; nil disables counters
}

// CreateSecret validates inputs, seals the plaintext under a key derived
// from the passphrase, and persists the record with an absolute expiry.
// Returns the generated retrieval key and the expiration timestamp.
func (s *Service) CreateSecret(ctx context.Context, secret, passphrase string) (domain.SecretID, time.Time, error) {
	if secret == "" || passphrase == "" {
		return "", time.Time{}, domain.ErrInvalidInput
	}
	if s.MaxBytes > 0 && int64(len(secret)) > s.MaxBytes {
		return "", time.Time{}, ErrSizeExceeded
	}
	key := s.Crypto.DeriveKey(passphrase)
	defer crypto.Zero(key)
	ciphertext, nonce, err := s.Crypto.Seal([]byte(secret), key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: seal: %v", domain.ErrInternal, err)
	}

	now := s.Clock.Now()
	expiresAt := now.Add(s.TTL)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, genErr := domain.NewID()
		if genErr != nil { // extremely unlikely, but propagate
			return "", time.Time{}, fmt.Errorf("%w: id: %v", domain.ErrInternal, genErr)
		}
		err = s.Store.Put(ctx, Record{
			ID:         id.String(),
			Nonce:      nonce,
			Ciphertext: ciphertext,
			CreatedAt:  now,
			ExpiresAt:  expiresAt,
		})
		if err == nil {
			s.inc(metrics.CounterSecretsCreated)
			return id, expiresAt, nil
		}
		if !errors.Is(err, domain.ErrDuplicateID) {
			return "", time.Time{}, fmt.Errorf("%w: put: %v", domain.ErrInternal, err)
		}
		// Collision: regenerate the identifier and try again.
	}
	return "", time.Time{}, fmt.Errorf("%w: id collisions exhausted %d attempts", domain.ErrInternal, maxIDAttempts)
}

// RedeemSecret consumes the record for id and returns the decrypted
// plaintext. The record is taken from the store before the passphrase is
// checked: a redemption attempt destroys the secret even when the
// passphrase turns out to be wrong. That ordering is deliberate one-time
// semantics (it also prevents brute-forcing a passphrase against persisted
// ciphertext) and must not be "fixed" into verify-then-consume.
func (s *Service) RedeemSecret(ctx context.Context, idStr, passphrase string) (string, error) {
	if passphrase == "" {
		return "", domain.ErrInvalidInput
	}
	// A malformed key cannot address any record; treat it as never existed
	// rather than revealing that the format itself was wrong.
	id, err := domain.ParseID(idStr)
	if err != nil {
		return "", domain.ErrNotFound
	}
	rec, err := s.Store.Take(ctx, id.String())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("%w: take: %v", domain.ErrInternal, err)
	}

	key := s.Crypto.DeriveKey(passphrase)
	defer crypto.Zero(key)
	plaintext, err := s.Crypto.Open(rec.Ciphertext, rec.Nonce, key)
	if err != nil {
		// The record is already gone; the failed attempt consumed it.
		s.inc(metrics.CounterRedeemFailures)
		return "", domain.ErrInvalidPassphrase
	}
	s.inc(metrics.CounterSecretsRedeemed)
	out := string(plaintext)
	crypto.Zero(plaintext)
	return out, nil
}

func (s *Service) inc(name string) {
	if s.Metrics != nil {
		s.Metrics.Inc(name, 1)
	}
}
