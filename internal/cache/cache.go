// Package cache provides the persistent HTTP response cache. Entries are
// keyed by request method plus URL, carry a TTL, and are evicted lazily:
// an expired row is deleted the first time a read sees it. Writes are plain
// upserts, so concurrent fetchers racing on the same key resolve to
// last-writer-wins without locking.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one cached response. Immutable once written; overwrites replace
// the whole row.
type Entry struct {
	Method      string
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	StoredAt    time.Time
	TTL         time.Duration
}

// Expired reports whether the entry has outlived its TTL at time now.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

// Key returns the deterministic cache key for a request.
func Key(method, url string) string {
	return strings.ToUpper(method) + " " + url
}

// Store wraps the SQLite database holding cached responses.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and applies pending
// migrations. Pass ":memory:" for an in-memory cache (used by tests).
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}

	// Single connection avoids "database is locked" under the collector's
	// concurrent reads and writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the live entry for a request, or nil when the key is absent.
// An expired entry is deleted and reported as a miss.
func (s *Store) Get(ctx context.Context, method, url string) (*Entry, error) {
	key := Key(method, url)

	var (
		e          Entry
		storedAt   int64
		ttlSeconds int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT method, url, status_code, content_type, body, stored_at, ttl_seconds
		 FROM responses WHERE key = ?`, key,
	).Scan(&e.Method, &e.URL, &e.StatusCode, &e.ContentType, &e.Body, &storedAt, &ttlSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	e.StoredAt = time.Unix(storedAt, 0)
	e.TTL = time.Duration(ttlSeconds) * time.Second

	if e.Expired(time.Now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE key = ?`, key); err != nil {
			return nil, fmt.Errorf("evicting expired entry: %w", err)
		}
		return nil, nil
	}

	return &e, nil
}

// Put stores an entry, replacing any previous value for the same key.
func (s *Store) Put(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (key, method, url, status_code, content_type, body, stored_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   method = excluded.method,
		   url = excluded.url,
		   status_code = excluded.status_code,
		   content_type = excluded.content_type,
		   body = excluded.body,
		   stored_at = excluded.stored_at,
		   ttl_seconds = excluded.ttl_seconds`,
		Key(e.Method, e.URL), e.Method, e.URL, e.StatusCode, e.ContentType, e.Body,
		e.StoredAt.Unix(), int64(e.TTL/time.Second),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// migrate applies embedded SQL migrations that have not run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}
