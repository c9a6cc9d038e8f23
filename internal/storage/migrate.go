package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
)

// TableDump is one exported table: its creation schema and every row in
// natural order.
type TableDump struct {
	Schema string           `json:"schema"`
	Data   []map[string]any `json:"data"`
}

// MigrationSnapshot maps table names to their dumps. It is the hand-off
// artifact written when falling back from the native-binary variant to the
// embedded-engine variant.
type MigrationSnapshot map[string]TableDump

// ExportLegacy reads the legacy store at sourcePath and returns a snapshot
// of every user table. The snapshot is also written to
// sourcePath + ".export.json", overwriting any previous export.
//
// An unreadable legacy store (corrupt, wrong format, driver unavailable)
// does not fail the fallback: ExportLegacy logs the reason and returns nil,
// and the new backend starts empty.
func ExportLegacy(sourcePath string) MigrationSnapshot {
	snap, err := exportTables(sourcePath)
	if err != nil {
		log.Printf("storage: migration skipped, legacy store unreadable: %v", err)
		return nil
	}

	if err := writeSnapshot(ExportPath(sourcePath), snap); err != nil {
		log.Printf("storage: writing migration export: %v", err)
	}
	return snap
}

// ExportPath returns the sidecar file the snapshot is written to.
func ExportPath(sourcePath string) string {
	return sourcePath + ".export.json"
}

// exportTables opens the legacy store read-only with the pure Go driver
// (which is always linkable, unlike the cgo one) and dumps every table that
// is not SQLite-internal.
func exportTables(sourcePath string) (MigrationSnapshot, error) {
	db, err := sql.Open(embeddedDriver, "file:"+sourcePath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sourcePath, err)
	}
	defer db.Close()

	rows, err := db.Query(
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	type table struct{ name, schema string }
	var tables []table
	for rows.Next() {
		var t table
		var schema sql.NullString
		if err := rows.Scan(&t.name, &schema); err != nil {
			rows.Close()
			return nil, err
		}
		t.schema = schema.String
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap := make(MigrationSnapshot, len(tables))
	for _, t := range tables {
		data, err := dumpTable(db, t.name)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", t.name, err)
		}
		snap[t.name] = TableDump{Schema: t.schema, Data: data}
	}
	return snap, nil
}

// dumpTable reads every row of a table in rowid order.
func dumpTable(db *sql.DB, table string) ([]map[string]any, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRowMaps(rows)
}

// writeSnapshot writes the export sidecar atomically.
func writeSnapshot(path string, snap MigrationSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}
