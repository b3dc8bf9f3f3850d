package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"floravision/internal/config"
	"floravision/internal/photo"
)

// ErrLocked is returned when another process holds the snapshot.
var ErrLocked = errors.New("snapshot in use by another process")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is the SQLite-backed record snapshot.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open opens the snapshot configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Cache.Path, cfg.LockPath())
}

// OpenPath opens or creates the snapshot at dbPath, guarded by lockPath.
func OpenPath(dbPath, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: dbPath, lock: lock}
	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

// Save inserts or replaces the record for rec.Path.
func (s *Store) Save(ctx context.Context, rec *photo.Record) error {
	if rec == nil || strings.TrimSpace(rec.Path) == "" {
		return errors.New("save record: path required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.exec(ctx, `INSERT INTO records (path, mod_time, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET mod_time = excluded.mod_time, payload = excluded.payload, updated_at = excluded.updated_at`,
		rec.Path, modKey(rec.LastModified), string(payload), time.Now().UTC().Format(time.RFC3339Nano))
}

// Lookup returns the record for path if it was saved for a file with modTime.
func (s *Store) Lookup(ctx context.Context, path string, modTime time.Time) (*photo.Record, bool, error) {
	var stored int64
	var payload string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT mod_time, payload FROM records WHERE path = ?", path).Scan(&stored, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s: %w", path, err)
	}
	if stored != modKey(modTime) {
		return nil, false, nil
	}
	rec, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Get returns the stored record for path regardless of modification time.
func (s *Store) Get(ctx context.Context, path string) (*photo.Record, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT payload FROM records WHERE path = ?", path).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", path, err)
	}
	rec, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// List returns every stored record ordered by path.
func (s *Store) List(ctx context.Context) ([]*photo.Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT payload FROM records ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*photo.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Delete removes the record for path and reports whether one existed.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	var affected int64
	err := retryOnBusy(ensureContext(ctx), func() error {
		res, err := s.db.ExecContext(ensureContext(ctx), "DELETE FROM records WHERE path = ?", path)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}
	return affected > 0, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	return s.exec(ctx, "DELETE FROM records")
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func decode(payload string) (*photo.Record, error) {
	var rec photo.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

func modKey(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
