package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Schema versions. After the first release, prefer adding a case to
// migrate() over bumping into the destructive default path.
const (
	schemaVersion     = 21
	prevSchemaVersion = 20
)

const (
	TableItems      = "items"
	TableFiles      = "files"
	TableAnswers    = "classification_answers"
	TableCheckboxes = "classification_checkboxes"
)

// InitDB opens (or creates) the database file and brings the schema up to
// the current version.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrate applies the two-tier migration policy: the transition from the
// immediately-preceding version is an additive in-place column change; any
// other version gap drops and recreates everything. A full rebuild leaves
// cached image files orphaned on disk; they are reused if a new file row
// lands on the same name.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case version == schemaVersion:
		// Up to date.

	case version == prevSchemaVersion:
		// Additive migration: the group id column is new in version 21.
		if _, err := db.Exec(`ALTER TABLE items ADD COLUMN groupId TEXT DEFAULT ''`); err != nil {
			log.Printf("migrate: ALTER TABLE ADD COLUMN groupId failed (%v), rebuilding schema", err)
			if err := rebuild(db); err != nil {
				return err
			}
		}

	case version == 0:
		// Fresh database. createSchema is idempotent, so a database that
		// somehow lost its version pragma is also handled here.
		if err := createSchema(db); err != nil {
			return err
		}

	default:
		log.Printf("migrate: unsupported schema version %d, rebuilding (classification history is lost)", version)
		if err := rebuild(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func rebuild(db *sql.DB) error {
	for _, table := range []string{TableItems, TableFiles, TableAnswers, TableCheckboxes} {
		if _, err := db.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return createSchema(db)
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		_id                         INTEGER PRIMARY KEY AUTOINCREMENT,
		done                        INTEGER DEFAULT 0,
		uploaded                    INTEGER DEFAULT 0,
		subjectId                   TEXT DEFAULT '',
		zooniverseId                TEXT DEFAULT '',
		groupId                     TEXT DEFAULT '',
		locationStandardUriRemote   TEXT DEFAULT '',
		locationStandardUri         TEXT DEFAULT '',
		locationStandardDownloaded  INTEGER DEFAULT 0,
		locationThumbnailUriRemote  TEXT DEFAULT '',
		locationThumbnailUri        TEXT DEFAULT '',
		locationThumbnailDownloaded INTEGER DEFAULT 0,
		locationInvertedUriRemote   TEXT DEFAULT '',
		locationInvertedUri         TEXT DEFAULT '',
		locationInvertedDownloaded  INTEGER DEFAULT 0,
		favorite                    INTEGER DEFAULT 0,
		dateTimeDone                TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_items_subjectId ON items(subjectId);
	CREATE INDEX IF NOT EXISTS idx_items_uploaded ON items(uploaded);
	CREATE INDEX IF NOT EXISTS idx_items_done ON items(done);
	CREATE INDEX IF NOT EXISTS idx_items_dateTimeDone ON items(dateTimeDone);
	CREATE INDEX IF NOT EXISTS idx_items_locationStandardDownloaded ON items(locationStandardDownloaded);
	CREATE INDEX IF NOT EXISTS idx_items_locationThumbnailDownloaded ON items(locationThumbnailDownloaded);
	CREATE INDEX IF NOT EXISTS idx_items_locationInvertedDownloaded ON items(locationInvertedDownloaded);

	CREATE TABLE IF NOT EXISTS files (
		_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		_data TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS classification_answers (
		_id        INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence   INTEGER DEFAULT 0,
		itemId     INTEGER,
		questionId TEXT DEFAULT '',
		answerId   TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_classification_answers_itemId ON classification_answers(itemId);

	CREATE TABLE IF NOT EXISTS classification_checkboxes (
		_id        INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence   INTEGER DEFAULT 0,
		itemId     INTEGER,
		questionId TEXT DEFAULT '',
		checkboxId TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_classification_checkboxes_itemId ON classification_checkboxes(itemId);
	CREATE INDEX IF NOT EXISTS idx_classification_checkboxes_questionId ON classification_checkboxes(questionId);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertRow inserts one row with explicit columns. Column names must come
// from the internal schema, never from caller input.
func InsertRow(db *sql.DB, table string, cols []string, vals []any) (int64, error) {
	if len(cols) == 0 || len(cols) != len(vals) {
		return 0, fmt.Errorf("insert into %s: %d columns, %d values", table, len(cols), len(vals))
	}

	query := `INSERT INTO ` + table + ` (`
	for i, col := range cols {
		if i > 0 {
			query += ", "
		}
		query += col
	}
	query += `) VALUES (` + placeholders(len(vals)) + `)`

	res, err := db.Exec(query, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateRows updates the given columns on all rows matching the where
// clause, returning the number of rows changed.
func UpdateRows(db *sql.DB, table string, cols []string, vals []any, where string, args ...any) (int64, error) {
	if len(cols) == 0 || len(cols) != len(vals) {
		return 0, fmt.Errorf("update %s: %d columns, %d values", table, len(cols), len(vals))
	}

	query := `UPDATE ` + table + ` SET `
	for i, col := range cols {
		if i > 0 {
			query += ", "
		}
		query += col + " = ?"
	}
	if where != "" {
		query += ` WHERE ` + where
	}

	res, err := db.Exec(query, append(vals, args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteRows deletes all rows matching the where clause.
func DeleteRows(db *sql.DB, table, where string, args ...any) (int64, error) {
	query := `DELETE FROM ` + table
	if where != "" {
		query += ` WHERE ` + where
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += "?"
	}
	return s
}
