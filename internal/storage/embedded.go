package storage

import (
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// embeddedDriver is the pure Go SQLite driver.
const embeddedDriver = "sqlite"

// embeddedExt marks files owned by the embedded-engine variant. A target
// path that already carries it needs no migration.
const embeddedExt = ".portable.db"

// EmbeddedPath returns the file the embedded-engine variant stores its data
// in for the given target path.
func EmbeddedPath(targetPath string) string {
	if strings.HasSuffix(targetPath, embeddedExt) {
		return targetPath
	}
	return strings.TrimSuffix(targetPath, filepath.Ext(targetPath)) + embeddedExt
}

// newEmbedded opens the embedded-engine variant for targetPath. When snap is
// non-nil and the store has never held a record, the legacy snapshot is
// imported table by table. Per-table import failures are logged and skipped;
// they never fail the open.
func newEmbedded(targetPath string, snap MigrationSnapshot) (*sqlBackend, error) {
	s, err := openSQL(embeddedDriver, EmbeddedPath(targetPath), VariantEmbedded)
	if err != nil {
		return nil, err
	}

	if snap != nil {
		empty, err := s.isEmpty()
		if err != nil {
			s.Close()
			return nil, err
		}
		if empty {
			importSnapshot(s.db, snap)
		}
	}
	return s, nil
}

// isEmpty reports whether the records table has never been written.
func (s *sqlBackend) isEmpty() (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return false, fmt.Errorf("count records: %w", err)
	}
	return n == 0, nil
}

// importSnapshot replays an exported legacy store into db. Tables are
// imported in name order so repeated imports behave identically.
func importSnapshot(db *sql.DB, snap MigrationSnapshot) {
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dump := snap[name]
		if dump.Schema != "" {
			if _, err := db.Exec(dump.Schema); err != nil {
				// Table may already exist from our own migrations.
				log.Printf("storage: import schema for %s: %v", name, err)
			}
		}
		if err := importRows(db, name, dump.Data); err != nil {
			log.Printf("storage: import rows for %s skipped: %v", name, err)
		}
	}
}

// importRows inserts exported rows, preserving their captured order.
func importRows(db *sql.DB, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	stmt, err := db.Prepare(fmt.Sprintf(
		`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`,
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = row[c]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
