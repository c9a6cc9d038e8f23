package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// sqlBackend is the shared implementation behind the native-binary and
// embedded-engine variants. The two differ only in driver name and file
// extension.
type sqlBackend struct {
	db      *sql.DB
	path    string
	variant Variant

	mu     sync.Mutex
	closed bool
}

// openSQL opens the database with the given driver, applies pragmas and
// schema migrations, and pings to force the driver to actually touch the
// file. With the cgo driver a ping is what surfaces "compiled without cgo"
// style failures, which the selector treats as variant-unavailable.
func openSQL(driver, path string, variant Variant) (*sqlBackend, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &sqlBackend{db: db, path: path, variant: variant}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlBackend) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	if err := applyMigrations(s.db); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *sqlBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (s *sqlBackend) Put(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *sqlBackend) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// All returns every stored key/value pair.
func (s *sqlBackend) All(ctx context.Context) (map[string][]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM records`)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Query runs an arbitrary SQL query and returns rows as column-name maps.
func (s *sqlBackend) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRowMaps(rows)
}

// Close closes the database. Safe to call more than once.
func (s *sqlBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *sqlBackend) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// scanRowMaps converts sql rows into a slice of column-name keyed maps,
// preserving row order. BLOB/text values come back as strings.
func scanRowMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
