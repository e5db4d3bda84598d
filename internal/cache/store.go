package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"gifsmith/internal/config"
	"gifsmith/internal/logging"
)

// Entry describes one cached result.
type Entry struct {
	Key        string
	SizeBytes  int64
	Width      int
	Height     int
	CreatedAt  time.Time
	LastAccess time.Time
}

// Store manages the cache directory and its SQLite index.
type Store struct {
	db       *sql.DB
	dir      string
	lock     *flock.Flock
	maxBytes int64
	logger   *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    key         TEXT PRIMARY KEY,
    file        TEXT NOT NULL,
    size        INTEGER NOT NULL,
    width       INTEGER NOT NULL,
    height      INTEGER NOT NULL,
    created_at  TEXT NOT NULL,
    last_access TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_last_access ON entries(last_access);
`

// Open initializes the cache directory, acquires the writer lock, and
// connects the index. Returns (nil, nil) when the cache is disabled.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil || !cfg.Cache.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	dir := cfg.Paths.CacheDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "cache.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, errors.New("cache directory is locked by another process")
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}

	return &Store{
		db:       db,
		dir:      dir,
		lock:     lock,
		maxBytes: int64(cfg.Cache.MaxMiB) << 20,
		logger:   logging.NewComponentLogger(logger, "cache"),
	}, nil
}

// Close releases the index and the writer lock. Nil-safe so callers can hold
// a disabled (nil) store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	if s.db != nil {
		firstErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns the cached payload for key, when present, and refreshes its
// recency.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	var file string
	err := s.db.QueryRowContext(ctx, `SELECT file FROM entries WHERE key = ?`, key).Scan(&file)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		// Index and payload diverged; drop the stale row.
		s.logger.Warn("cache payload missing, evicting entry", "key", key)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
		return nil, false, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `UPDATE entries SET last_access = ? WHERE key = ?`, now, key); err != nil {
		return nil, false, fmt.Errorf("touch cache entry: %w", err)
	}
	return data, true, nil
}

// Put stores a payload under key and prunes least-recently-used entries
// until the cache fits its byte budget.
func (s *Store) Put(ctx context.Context, key string, data []byte, width, height int) error {
	if s == nil {
		return nil
	}
	file := key + ".gif"
	if err := os.WriteFile(filepath.Join(s.dir, file), data, 0o644); err != nil {
		return fmt.Errorf("write cache payload: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (key, file, size, width, height, created_at, last_access)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET last_access = excluded.last_access`,
		key, file, int64(len(data)), width, height, now, now,
	)
	if err != nil {
		return fmt.Errorf("index cache entry: %w", err)
	}
	return s.pruneToBudget(ctx)
}

// List returns all entries, most recently used first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, size, width, height, created_at, last_access
         FROM entries ORDER BY last_access DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, accessed string
		if err := rows.Scan(&e.Key, &e.SizeBytes, &e.Width, &e.Height, &created, &accessed); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.LastAccess, _ = time.Parse(time.RFC3339Nano, accessed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune removes least-recently-used entries until the cache fits its budget
// and reports how many were evicted.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}
	before, err := s.count(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.pruneToBudget(ctx); err != nil {
		return 0, err
	}
	after, err := s.count(ctx)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

// Clear removes every entry and payload.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil {
		return nil
	}
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(s.dir, e.Key+".gif"))
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear cache index: %w", err)
	}
	return nil
}

func (s *Store) count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func (s *Store) pruneToBudget(ctx context.Context) error {
	if s.maxBytes <= 0 {
		return nil
	}
	for {
		var total sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT SUM(size) FROM entries`).Scan(&total); err != nil {
			return fmt.Errorf("sum cache size: %w", err)
		}
		if !total.Valid || total.Int64 <= s.maxBytes {
			return nil
		}

		var key, file string
		err := s.db.QueryRowContext(ctx,
			`SELECT key, file FROM entries ORDER BY last_access ASC LIMIT 1`).Scan(&key, &file)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select eviction candidate: %w", err)
		}
		_ = os.Remove(filepath.Join(s.dir, file))
		if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
			return fmt.Errorf("evict cache entry: %w", err)
		}
		s.logger.Debug("evicted cache entry", "key", key)
	}
}
