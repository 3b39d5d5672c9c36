// Package crypto implements the symmetric encryption engine for secrets:
// passphrase-based key derivation plus authenticated encryption of payloads.
// It performs no I/O; the process-wide salt is injected at construction so
// the engine stays testable with fixed salts.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// ErrAuthentication indicates the ciphertext/nonce/key combination did not
// verify: a wrong passphrase or corrupted data. GCM tag verification is
// constant-time, so the failure does not leak which byte mismatched.
var ErrAuthentication = errors.New("authentication failed")

const (
	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32

	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12

	// Iterations is the fixed PBKDF2 work factor. Changing it invalidates
	// every stored secret, since the same passphrase would derive a
	// different key.
	Iterations = 100_000
)

// Engine derives keys from passphrases and seals/opens secret payloads with
// AES-256-GCM. It is safe for concurrent use.
type Engine struct {
	salt []byte
}

// New returns an Engine bound to the process-wide salt. The salt is secret
// and fixed for the process lifetime; rotating it orphans all stored
// ciphertext.
func New(salt []byte) (*Engine, error) {
	if len(salt) == 0 {
		return nil, errors.New("crypto: empty salt")
	}
	s := make([]byte, len(salt))
	copy(s, salt)
	return &Engine{salt: s}, nil
}

// DeriveKey derives a KeySize-byte key from the passphrase and the engine
// salt using PBKDF2-HMAC-SHA256. Deterministic: the same passphrase always
// yields the same key, as required for decryption to work at all.
func (e *Engine) DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), e.salt, Iterations, KeySize, sha256.New)
}

// Seal encrypts plaintext under key with AES-256-GCM, generating a fresh
// random nonce per call. The nonce is returned alongside the ciphertext and
// must be stored with it. Fails only on an invalid key length, which is a
// programming error.
func (e *Engine) Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts ciphertext produced by Seal. Returns ErrAuthentication when
// the key is wrong or the data was tampered with.
func (e *Engine) Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrAuthentication
	}
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Zero overwrites b. Used to drop key and plaintext material from working
// memory as soon as it is no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
