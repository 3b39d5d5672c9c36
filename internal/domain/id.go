// Package domain id.go contains functions to generate, parse, and validate
// secret identifiers (retrieval keys).
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// ErrInvalidID indicates a retrieval key that is not in canonical form.
var ErrInvalidID = errors.New("invalid secret id")

// SecretID is the opaque retrieval key for a stored secret: a 128-bit
// cryptographically random value encoded as 32 lowercase hex characters.
// It is generated once at creation and never reused.
type SecretID string

// idLen is the encoded length of a SecretID (16 random bytes, hex).
const idLen = 32

// NewID generates a fresh random SecretID.
func NewID() (SecretID, error) {
	var raw [idLen / 2]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return SecretID(hex.EncodeToString(raw[:])), nil
}

// ParseID validates s and returns it as a SecretID. It enforces non-empty,
// length == 32, and lowercase [0-9a-f] only. Returns ErrInvalidID otherwise.
func ParseID(s string) (SecretID, error) {
	if !isValidID(s) {
		return "", ErrInvalidID
	}
	return SecretID(s), nil
}

// String returns the string form of the SecretID.
func (id SecretID) String() string { return string(id) }

// Valid reports whether the ID satisfies the same rules as ParseID.
func (id SecretID) Valid() bool { return isValidID(string(id)) }

// isValidID performs validation without allocating errors.
func isValidID(s string) bool {
	if len(s) != idLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
