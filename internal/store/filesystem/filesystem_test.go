package filesystem

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testID = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) (*BlobStore, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New(dir)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return b, dir
}

func TestNewRejectsMissingOrFileRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(f); err == nil {
		t.Fatal("expected error for non-directory root")
	}
}

func TestWriteConsumeRoundTrip(t *testing.T) {
	b, _ := newTestStore(t)
	ct := []byte("sealed payload bytes")
	if err := b.Write(testID, ct); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, err := b.Consume(testID)
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if !bytes.Equal(got, ct) {
		t.Fatalf("round trip mismatch: %q", got)
	}
	// Consume deletes; a second read must fail.
	if _, err := b.Consume(testID); err == nil {
		t.Fatal("expected error consuming twice")
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	b, _ := newTestStore(t)
	if err := b.Write(testID, []byte("one")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := b.Write(testID, []byte("two")); err == nil {
		t.Fatal("expected error overwriting existing blob")
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	b, _ := newTestStore(t)
	bad := []string{"short", "../../etc/passwd", "0123456789ABCDEF0123456789ABCDEF"}
	for _, id := range bad {
		if err := b.Write(id, []byte("x")); err == nil {
			t.Errorf("Write accepted invalid id %q", id)
		}
		if _, err := b.Consume(id); err == nil {
			t.Errorf("Consume accepted invalid id %q", id)
		}
		if err := b.Delete(id); err == nil {
			t.Errorf("Delete accepted invalid id %q", id)
		}
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	b, _ := newTestStore(t)
	if err := b.Delete(testID); err != nil {
		t.Fatalf("Delete of missing blob should be nil, got %v", err)
	}
	if err := b.Delete(""); err != nil {
		t.Fatalf("Delete of empty id should be nil, got %v", err)
	}
}

func TestListSkipsFreshAndForeignFiles(t *testing.T) {
	b, dir := newTestStore(t)
	// An aged blob should be listed.
	aged := filepath.Join(dir, testID+".blob")
	if err := os.WriteFile(aged, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(aged, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	// A foreign file should be ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A just-written blob should be skipped by the freshness guard.
	if err := b.Write("ffffffffffffffffffffffffffffffff", []byte("y")); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	ids, err := b.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(ids) != 1 || ids[0] != testID {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
