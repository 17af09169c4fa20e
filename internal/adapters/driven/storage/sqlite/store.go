package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// highlight and conversation store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the annotation database at dbPath.
// If dbPath is empty, defaults to ~/.marginalia/data/annotations.db.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".marginalia", "data", "annotations.db")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency: history reads
	// happen while the streaming flow is writing.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations for the tables this process owns
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// The highlights table is shared with the viewer and handled outside
	// the migration ledger
	if err := s.ensureHighlightSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing highlights table: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// HighlightStore returns a HighlightStore interface backed by this store.
func (s *Store) HighlightStore() driven.HighlightStore {
	return &highlightStore{store: s}
}

// ConversationStore returns a ConversationStore interface backed by this store.
func (s *Store) ConversationStore() driven.ConversationStore {
	return &conversationStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_conversations.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ensureHighlightSchema creates the shared highlights table when the viewer
// has not, and backfills the is_ai column on databases that predate it.
// Existing rows keep their default (unset) flag.
func (s *Store) ensureHighlightSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS highlights (
			id INTEGER PRIMARY KEY,
			document_id TEXT NOT NULL,
			page INTEGER NOT NULL,
			boxes TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating highlights table: %w", err)
	}

	rows, err := s.db.Query("PRAGMA table_info(highlights)")
	if err != nil {
		return fmt.Errorf("inspecting highlights table: %w", err)
	}
	defer rows.Close()

	hasAIColumn := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == "is_ai" {
			hasAIColumn = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating column info: %w", err)
	}

	if !hasAIColumn {
		if _, err := s.db.Exec(
			"ALTER TABLE highlights ADD COLUMN is_ai INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("adding is_ai column: %w", err)
		}
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_highlights_document_id
			ON highlights(document_id)
	`)
	if err != nil {
		return fmt.Errorf("indexing highlights table: %w", err)
	}

	return nil
}

// storeError tags a persistence failure so the orchestrator's retry policy
// can recognise it.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}
