// Package sqlite provides a SQLite-backed implementation of the store.Index
// port for persisting secret metadata and inline ciphertext.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/wisp/internal/domain"
	"github.com/haukened/wisp/internal/store"

	"github.com/mattn/go-sqlite3"
)

var _ store.Index = (*Index)(nil)

// Index implements store.Index using SQLite (via database/sql). It is safe
// for concurrent use; database/sql manages connection pooling and
// serialization.
type Index struct{ db *sql.DB }

// New constructs an Index, initializing the required schema if absent.
func New(db *sql.DB) (*Index, error) {
	ix := &Index{db: db}
	if err := ix.init(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (i *Index) init() error {
	schema := `CREATE TABLE IF NOT EXISTS secrets (
id TEXT PRIMARY KEY,
nonce BLOB NOT NULL,
inline BLOB,
external INTEGER NOT NULL DEFAULT 0,
size INTEGER NOT NULL,
created_at INTEGER NOT NULL,
expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_secrets_expires_at ON secrets(expires_at);`
	_, err := i.db.Exec(schema)
	return err
}

// Insert stores a new secret row. A primary-key violation surfaces as
// domain.ErrDuplicateID so the service layer can regenerate the identifier.
func (i *Index) Insert(ctx context.Context, id string, nonce, inline []byte, external bool, size int64, createdAt, expiresAt time.Time) error {
	const q = `INSERT INTO secrets (id, nonce, inline, external, size, created_at, expires_at) VALUES (?,?,?,?,?,?,?)`
	ext := 0
	if external {
		ext = 1
	}
	_, err := i.db.ExecContext(ctx, q, id, nonce, inline, ext, size, createdAt.Unix(), expiresAt.Unix())
	if err != nil && isUniqueViolation(err) {
		return domain.ErrDuplicateID
	}
	return err
}

// Take hard-deletes the row and returns its data, gated on expiry inside the
// same statement. DELETE ... RETURNING makes the existence check, expiry
// check, and removal indivisible: under concurrent callers exactly one
// receives the row, everyone else scans no rows.
func (i *Index) Take(ctx context.Context, id string, now time.Time) (*store.IndexResult, error) {
	const del = `DELETE FROM secrets WHERE id=? AND expires_at > ? RETURNING nonce, inline, external, size, created_at, expires_at`
	var (
		res         store.IndexResult
		extInt      int
		createdUnix int64
		expiresUnix int64
	)
	row := i.db.QueryRowContext(ctx, del, id, now.Unix())
	if err := row.Scan(&res.Nonce, &res.Inline, &extInt, &res.Size, &createdUnix, &expiresUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	res.External = extInt == 1
	res.CreatedAt = time.Unix(createdUnix, 0).UTC()
	res.ExpiresAt = time.Unix(expiresUnix, 0).UTC()
	return &res, nil
}

// DeleteExpired selects secrets expiring before t and deletes them,
// returning records for blob cleanup.
func (i *Index) DeleteExpired(ctx context.Context, t time.Time) ([]store.ExpiredRecord, error) {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT id, external FROM secrets WHERE expires_at < ?`
	rows, err := tx.QueryContext(ctx, sel, t.Unix())
	if err != nil {
		return nil, err
	}
	var recs []store.ExpiredRecord
	for rows.Next() {
		var r store.ExpiredRecord
		var extInt int
		if err = rows.Scan(&r.ID, &extInt); err != nil {
			if cErr := rows.Close(); cErr != nil {
				return nil, fmt.Errorf("scan error: %v; close error: %w", err, cErr)
			}
			return nil, err
		}
		r.External = extInt == 1
		recs = append(recs, r)
	}
	if cErr := rows.Close(); cErr != nil {
		return nil, cErr
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	const del = `DELETE FROM secrets WHERE expires_at < ?`
	if _, err = tx.ExecContext(ctx, del, t.Unix()); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ListExternalIDs returns IDs of secrets with external (blob) storage.
func (i *Index) ListExternalIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM secrets WHERE external=1`
	rows, err := i.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint &&
			(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique)
	}
	return false
}
