// Package store implements spec.md §5's store index: the durable record of
// which store paths are registered (successfully realized and safe to
// reuse), backed by SQLite via modernc.org/sqlite so the binary stays
// cgo-free even though the sandbox package already needs raw syscalls.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/viperML/miq/internal/miqerr"
)

// Index is the store's registration index: a single table mapping a
// normalized store path to the time it was registered. A single
// sync.Mutex serializes writers, matching the teacher's single-writer
// discipline for its local SQLite-backed stores (LocalStore in the
// example corpus sets MaxOpenConns(1) for the same reason).
type Index struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite index at dbURL and ensures
// its schema exists.
func Open(dbURL string) (*Index, error) {
	db, err := sql.Open("sqlite", dbURL)
	if err != nil {
		return nil, miqerr.Wrap(miqerr.Permanent, err, "opening store index")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, miqerr.Wrap(miqerr.Permanent, err, "setting WAL mode on store index")
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, miqerr.Wrap(miqerr.Permanent, err, "setting busy_timeout on store index")
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS store_paths (
		path TEXT PRIMARY KEY,
		registered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := idx.db.Exec(schema); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "creating store index schema")
	}
	return nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// normalize strips a trailing path separator so "/miq/store/x" and
// "/miq/store/x/" register as the same entry.
func normalize(path string) string {
	return strings.TrimRight(filepath.Clean(path), string(filepath.Separator))
}

// Register marks path as a completed, reusable store entry. Registering an
// already-registered path is a no-op success (spec.md §4's
// already-registered race is treated as success, not an error).
func (idx *Index) Register(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, err := idx.db.Exec(
		"INSERT INTO store_paths (path) VALUES (?) ON CONFLICT(path) DO NOTHING",
		normalize(path),
	)
	if err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("registering store path %s", path))
	}
	return nil
}

// Unregister removes path from the index and deletes the on-disk tree at
// path. Unregistering an absent path is not an error.
func (idx *Index) Unregister(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	normalized := normalize(path)

	if err := os.RemoveAll(normalized); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("removing store path %s", path))
	}

	_, err := idx.db.Exec("DELETE FROM store_paths WHERE path = ?", normalized)
	if err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("unregistering store path %s", path))
	}
	return nil
}

// IsRegistered reports whether path is a completed, reusable store entry.
func (idx *Index) IsRegistered(path string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var count int
	err := idx.db.QueryRow("SELECT COUNT(*) FROM store_paths WHERE path = ?", normalize(path)).Scan(&count)
	if err != nil {
		return false, miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("checking registration of %s", path))
	}
	return count > 0, nil
}

// List returns every registered store path, sorted.
func (idx *Index) List() ([]string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows, err := idx.db.Query("SELECT path FROM store_paths")
	if err != nil {
		return nil, miqerr.Wrap(miqerr.Permanent, err, "listing store paths")
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, miqerr.Wrap(miqerr.Permanent, err, "scanning store path row")
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, miqerr.Wrap(miqerr.Permanent, err, "iterating store path rows")
	}

	sort.Strings(paths)
	return paths, nil
}
