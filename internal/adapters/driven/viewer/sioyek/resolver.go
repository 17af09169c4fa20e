package sioyek

import (
	"context"
	"crypto/md5" //nolint:gosec // identity scheme inherited from the viewer, not a security boundary
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// Ensure Resolver implements the interface.
var _ driven.DocumentResolver = (*Resolver)(nil)

// Resolver maps file paths to the viewer's document identities. The viewer
// keeps a path-to-checksum table in its local database; files it has not
// seen yet get their checksum computed here and written back, so both
// programs agree on the identity from then on.
type Resolver struct {
	db *sql.DB
}

// NewResolver opens the viewer's local database. An empty path skips the
// database entirely and every lookup computes the checksum.
func NewResolver(localDBPath string) (*Resolver, error) {
	if localDBPath == "" {
		return &Resolver{}, nil
	}

	db, err := sql.Open("sqlite", localDBPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	// The viewer owns this table; create it only when resolving against a
	// fresh database.
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS document_hash (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT UNIQUE NOT NULL,
			hash TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing document_hash table: %w", err)
	}

	return &Resolver{db: db}, nil
}

// Resolve returns the document identity for a file path.
func (r *Resolver) Resolve(ctx context.Context, filePath string) (domain.DocumentID, error) {
	if filePath == "" {
		return "", domain.ErrInvalidInput
	}

	norm, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return "", fmt.Errorf("normalising path: %w", err)
	}

	if r.db != nil {
		var hash string
		err := r.db.QueryRowContext(ctx,
			"SELECT hash FROM document_hash WHERE path = ?", norm).Scan(&hash)
		if err == nil {
			return domain.DocumentID(hash), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("querying document hash: %w", err)
		}
	}

	// The viewer hasn't seen this file yet: compute the checksum and, when
	// a database is open, record it so the viewer reuses the same identity.
	hash, err := hashFile(norm)
	if err != nil {
		return "", err
	}

	if r.db != nil {
		if _, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO document_hash (path, hash) VALUES (?, ?)",
			norm, hash); err != nil {
			return "", fmt.Errorf("recording document hash: %w", err)
		}
	}

	return domain.DocumentID(hash), nil
}

// Close closes the local database when one is open.
func (r *Resolver) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// hashFile computes the viewer's content checksum for a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	digest := md5.New() //nolint:gosec // viewer identity scheme
	if _, err := io.Copy(digest, f); err != nil {
		return "", fmt.Errorf("hashing document: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
