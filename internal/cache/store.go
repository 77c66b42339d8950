package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds cache store configuration.
type Config struct {
	// DataDir is where cache.db lives.
	DataDir string
	// TTL is how long an entry stays valid. Zero means entries never expire.
	TTL time.Duration
	// MaxResultRows caps the size of a cacheable result set.
	// Larger results are executed but not stored. Zero means no cap.
	MaxResultRows int
}

// DefaultConfig returns the default configuration for the cache store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:       filepath.Join(home, ".igloo"),
		TTL:           24 * time.Hour,
		MaxResultRows: 10000,
	}
}

// Store is the query-result cache backed by SQLite. Key and column
// derivation are pure functions; the store adds persistence, TTL expiry,
// and per-key write exclusion so two concurrent writers cannot race an
// entry into an inconsistent column set.
type Store struct {
	db  *sql.DB
	cfg Config

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("cache: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "cache.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("cache: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, keyLocks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("cache: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS results (
			cache_key      TEXT PRIMARY KEY,
			statement_hash TEXT    NOT NULL,
			profile        TEXT    NOT NULL,
			context_json   TEXT    NOT NULL,
			columns_json   TEXT    NOT NULL,
			rows_json      TEXT    NOT NULL,
			row_count      INTEGER NOT NULL,
			byte_size      INTEGER NOT NULL,
			hit_count      INTEGER NOT NULL DEFAULT 0,
			execution_id   TEXT,
			created_at     TEXT    NOT NULL,
			last_hit_at    TEXT,
			expires_at     TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_results_profile ON results(profile);
		CREATE INDEX IF NOT EXISTS idx_results_expires ON results(expires_at);
		CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// lockKey acquires the write lock for a cache key and returns its
// unlock function. Locks are allocated lazily and never reclaimed —
// the key space of a single server process is small.
func (s *Store) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Put stores an entry, replacing any previous result under the same key.
// Missing columns are derived from the rows (union across every row).
// An explicit column list that drops a row's field is rejected — the
// store never truncates silently.
func (s *Store) Put(e *Entry) error {
	if e == nil || e.Key == "" {
		return fmt.Errorf("cache: put: missing cache key")
	}
	if s.cfg.MaxResultRows > 0 && len(e.Rows) > s.cfg.MaxResultRows {
		return fmt.Errorf("cache: put: result has %d rows, cap is %d", len(e.Rows), s.cfg.MaxResultRows)
	}

	if len(e.Columns) == 0 {
		e.Columns, _ = DeriveColumns(e.Rows, nil)
	}
	if err := CheckColumns(e.Columns, e.Rows); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}

	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("cache: put: marshal context: %w", err)
	}
	columnsJSON, err := json.Marshal(e.Columns)
	if err != nil {
		return fmt.Errorf("cache: put: marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(e.Rows)
	if err != nil {
		return fmt.Errorf("cache: put: marshal rows: %w", err)
	}

	e.RowCount = len(e.Rows)
	e.ByteSize = int64(len(rowsJSON))
	now := time.Now().UTC()
	e.CreatedAt = now.Format(time.RFC3339)
	e.ExpiresAt = nil
	if s.cfg.TTL != 0 {
		exp := now.Add(s.cfg.TTL).Format(time.RFC3339)
		e.ExpiresAt = &exp
	}

	unlock := s.lockKey(e.Key)
	defer unlock()

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO results
		 (cache_key, statement_hash, profile, context_json, columns_json, rows_json,
		  row_count, byte_size, hit_count, execution_id, created_at, last_hit_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, NULL, ?)`,
		e.Key, e.StatementHash, e.Profile, string(contextJSON), string(columnsJSON), string(rowsJSON),
		e.RowCount, e.ByteSize, nullableString(e.ExecutionID), e.CreatedAt, e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Get returns the entry for a key, a boolean reporting presence, and an
// error. Expired entries are deleted on access and reported as misses.
// Hits bump hit_count and last_hit_at.
func (s *Store) Get(key string) (*Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT cache_key, statement_hash, profile, context_json, columns_json, rows_json,
		        row_count, byte_size, hit_count, execution_id, created_at, last_hit_at, expires_at
		 FROM results WHERE cache_key = ?`, key,
	)

	e, err := scanEntry(row, true)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	if expired(e.ExpiresAt, time.Now().UTC()) {
		unlock := s.lockKey(key)
		defer unlock()
		if _, err := s.db.Exec(`DELETE FROM results WHERE cache_key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("cache: expire: %w", err)
		}
		return nil, false, nil
	}

	if _, err := s.db.Exec(
		`UPDATE results SET hit_count = hit_count + 1, last_hit_at = ? WHERE cache_key = ?`,
		time.Now().UTC().Format(time.RFC3339), key,
	); err != nil {
		return nil, false, fmt.Errorf("cache: record hit: %w", err)
	}
	e.HitCount++

	return e, true, nil
}

// Invalidate removes a single entry. The boolean reports whether the
// key was present.
func (s *Store) Invalidate(key string) (bool, error) {
	unlock := s.lockKey(key)
	defer unlock()

	res, err := s.db.Exec(`DELETE FROM results WHERE cache_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("cache: invalidate: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InvalidateProfile removes every entry stored under a profile and
// returns the number removed.
func (s *Store) InvalidateProfile(profile string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM results WHERE profile = ?`, profile)
	if err != nil {
		return 0, fmt.Errorf("cache: invalidate profile: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// InvalidateAll empties the cache and returns the number of entries removed.
func (s *Store) InvalidateAll() (int, error) {
	res, err := s.db.Exec(`DELETE FROM results`)
	if err != nil {
		return 0, fmt.Errorf("cache: invalidate all: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneExpired removes every entry past its expiry and returns the
// number removed. RFC3339 UTC timestamps compare correctly as strings.
func (s *Store) PruneExpired() (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM results WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Recent returns the most recently stored entries, newest first, with
// metadata only — Rows are not loaded.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		`SELECT cache_key, statement_hash, profile, context_json, columns_json, '',
		        row_count, byte_size, hit_count, execution_id, created_at, last_hit_at, expires_at
		 FROM results ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("cache: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows, false)
		if err != nil {
			return nil, fmt.Errorf("cache: recent: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate cache statistics.
func (s *Store) Stats() (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(row_count), 0), COALESCE(SUM(byte_size), 0), COALESCE(SUM(hit_count), 0)
		 FROM results`,
	).Scan(&st.Entries, &st.TotalRows, &st.TotalBytes, &st.TotalHits)
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}

	rows, err := s.db.Query(`SELECT DISTINCT profile FROM results ORDER BY profile`)
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("cache: stats: %w", err)
		}
		st.Profiles = append(st.Profiles, p)
	}
	return &st, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one results row. withRows controls whether rows_json
// is unmarshaled (Recent selects an empty literal in its place).
func scanEntry(sc scanner, withRows bool) (*Entry, error) {
	var (
		e           Entry
		contextJSON string
		columnsJSON string
		rowsJSON    string
		executionID sql.NullString
	)
	if err := sc.Scan(
		&e.Key, &e.StatementHash, &e.Profile, &contextJSON, &columnsJSON, &rowsJSON,
		&e.RowCount, &e.ByteSize, &e.HitCount, &executionID, &e.CreatedAt, &e.LastHitAt, &e.ExpiresAt,
	); err != nil {
		return nil, err
	}

	if executionID.Valid {
		e.ExecutionID = executionID.String
	}
	if err := json.Unmarshal([]byte(contextJSON), &e.Context); err != nil {
		return nil, fmt.Errorf("parse context for %q: %w", e.Key, err)
	}
	if err := json.Unmarshal([]byte(columnsJSON), &e.Columns); err != nil {
		return nil, fmt.Errorf("parse columns for %q: %w", e.Key, err)
	}
	if withRows && rowsJSON != "" {
		if err := json.Unmarshal([]byte(rowsJSON), &e.Rows); err != nil {
			return nil, fmt.Errorf("parse rows for %q: %w", e.Key, err)
		}
	}
	return &e, nil
}

// expired reports whether an RFC3339 expiry timestamp is in the past.
// Unparseable timestamps count as expired — a corrupt expiry should not
// pin an entry forever.
func expired(expiresAt *string, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	t, err := time.Parse(time.RFC3339, *expiresAt)
	if err != nil {
		return true
	}
	return !t.After(now)
}

// nullableString converts empty strings to NULL for storage.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
