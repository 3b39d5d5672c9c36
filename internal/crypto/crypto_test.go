package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New([]byte("test-salt-0123456789"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return e
}

func TestNewRejectsEmptySalt(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for empty salt")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	e := newTestEngine(t)
	k1 := e.DeriveKey("p@ss")
	k2 := e.DeriveKey("p@ss")
	if !bytes.Equal(k1, k2) {
		t.Fatal("same passphrase and salt must derive the same key")
	}
	if len(k1) != KeySize {
		t.Fatalf("key length %d, want %d", len(k1), KeySize)
	}
	if bytes.Equal(k1, e.DeriveKey("other")) {
		t.Fatal("different passphrases derived the same key")
	}
}

func TestDeriveKeySaltDependent(t *testing.T) {
	a := newTestEngine(t)
	b, err := New([]byte("another-salt-9876543210"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if bytes.Equal(a.DeriveKey("p@ss"), b.DeriveKey("p@ss")) {
		t.Fatal("different salts derived the same key")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	key := e.DeriveKey("p@ss")
	payloads := [][]byte{
		[]byte(""),
		[]byte("launch codes"),
		bytes.Repeat([]byte{0x00}, 4096),
		[]byte(strings.Repeat("large payload ", 10_000)),
	}
	for _, pt := range payloads {
		ct, nonce, err := e.Seal(pt, key)
		if err != nil {
			t.Fatalf("Seal error: %v", err)
		}
		if len(nonce) != NonceSize {
			t.Fatalf("nonce length %d, want %d", len(nonce), NonceSize)
		}
		got, err := e.Open(ct, nonce, key)
		if err != nil {
			t.Fatalf("Open error: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("round trip mismatch for %d-byte payload", len(pt))
		}
	}
}

func TestSealNonceFreshPerCall(t *testing.T) {
	e := newTestEngine(t)
	key := e.DeriveKey("p@ss")
	_, n1, err := e.Seal([]byte("x"), key)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	_, n2, err := e.Seal([]byte("x"), key)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if bytes.Equal(n1, n2) {
		t.Fatal("nonce reused across Seal calls")
	}
}

func TestOpenWrongKeyFailsAuthentication(t *testing.T) {
	e := newTestEngine(t)
	ct, nonce, err := e.Seal([]byte("launch codes"), e.DeriveKey("p@ss"))
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if _, err := e.Open(ct, nonce, e.DeriveKey("wrong")); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestOpenMutatedCiphertextFailsAuthentication(t *testing.T) {
	e := newTestEngine(t)
	key := e.DeriveKey("p@ss")
	ct, nonce, err := e.Seal([]byte("launch codes"), key)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	for i := range ct {
		mutated := make([]byte, len(ct))
		copy(mutated, ct)
		mutated[i] ^= 0x01
		if _, err := e.Open(mutated, nonce, key); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("byte %d mutation: expected ErrAuthentication, got %v", i, err)
		}
	}
}

func TestOpenBadNonceFailsAuthentication(t *testing.T) {
	e := newTestEngine(t)
	key := e.DeriveKey("p@ss")
	ct, _, err := e.Seal([]byte("launch codes"), key)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if _, err := e.Open(ct, []byte("short"), key); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestSealRejectsBadKeyLength(t *testing.T) {
	e := newTestEngine(t)
	if _, _, err := e.Seal([]byte("x"), []byte("too short")); err == nil {
		t.Fatal("expected error for invalid key length")
	}
	if _, err := e.Open([]byte("x"), make([]byte, NonceSize), []byte("too short")); err == nil {
		t.Fatal("expected error for invalid key length")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Fatalf("Zero did not clear buffer: %v", b)
	}
}
