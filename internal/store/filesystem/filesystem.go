// Package filesystem provides a BlobStorage implementation backed by the
// local filesystem. It stores large ciphertext payloads as immutable blob
// files named by secret ID.
package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/haukened/wisp/internal/domain"
	"github.com/haukened/wisp/internal/store"
)

// Ensure BlobStore implements store.BlobStorage
var _ store.BlobStorage = (*BlobStore)(nil)

// BlobStore implements store.BlobStorage using the local filesystem. Files
// are named by the secret ID (with a fixed suffix) to simplify lookup.
type BlobStore struct {
	root string
}

// New returns a filesystem-backed blob store rooted at dir. The directory
// must already exist with secure permissions (0700 recommended).
func New(root string) (*BlobStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("blob root is not a directory")
	}
	return &BlobStore{root: root}, nil
}

// path constructs the full path to the blob file for a given secret ID.
func (b *BlobStore) path(id string) string { return filepath.Join(b.root, id+".blob") }

// Write stores ciphertext into a new file associated with id. O_EXCL keeps
// blobs immutable; a partial write is removed rather than left behind.
func (b *BlobStore) Write(id string, ciphertext []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	p := b.path(id)
	// #nosec G304: path is constructed from a fixed root plus a validated ID with a fixed suffix; no traversal possible.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err = f.Write(ciphertext); err == nil {
		err = f.Sync()
	}
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = os.Remove(p)
	}
	return err
}

// Consume reads the blob for id and deletes it. Callers only reach here
// after winning the index delete, so the read-then-remove pair is never
// contended for the same id.
func (b *BlobStore) Consume(id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	p := b.path(id)
	data, err := os.ReadFile(p) // #nosec G304 path constructed internally
	if err != nil {
		return nil, err
	}
	if err := os.Remove(p); err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the blob file for a given secret id.
func (b *BlobStore) Delete(id string) error {
	if id == "" {
		return nil
	}
	if err := validateID(id); err != nil {
		return err
	}
	err := os.Remove(b.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List returns all blob IDs currently present. Higher layers derive orphans
// by diffing against index-reported external IDs.
func (b *BlobStore) List() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".blob" {
			continue
		}
		// Basic freshness guard: skip very recent files (<1s) to avoid
		// racing an in-flight Put whose index insert hasn't landed yet.
		if info, err := e.Info(); err == nil && time.Since(info.ModTime()) < time.Second {
			continue
		}
		ids = append(ids, name[:len(name)-5])
	}
	return ids, nil
}

// validateID enforces that the blob ID is a canonical 32-character lowercase
// hexadecimal secret ID. This both prevents path traversal (no separators,
// fixed length) and guarantees uniform filenames.
func validateID(id string) error {
	if _, err := domain.ParseID(id); err != nil {
		return errors.New("invalid blob id: must be 32 lowercase hex chars")
	}
	return nil
}
