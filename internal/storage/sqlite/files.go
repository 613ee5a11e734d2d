package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"zooclient/internal/domain"
)

// FileRef is the stored reference an item row uses to point at a files row.
func FileRef(fileID int64) string {
	return fmt.Sprintf("file/%d", fileID)
}

func parseFileRef(ref string) (int64, bool) {
	rest, ok := strings.CutPrefix(ref, "file/")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateFileRecord reserves a files row and the empty cache file backing it,
// returning the new row id and the file's absolute path. The path is named
// after the row id, so a stale file left behind by a destructive schema
// rebuild is simply reused.
func CreateFileRecord(db *sql.DB, cacheDir string) (int64, string, error) {
	fileID, err := InsertRow(db, TableFiles, []string{"_data"}, []any{""})
	if err != nil {
		return 0, "", fmt.Errorf("insert file row: %w", err)
	}

	path := filepath.Join(cacheDir, strconv.FormatInt(fileID, 10))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return 0, "", fmt.Errorf("create cache file %s: %w", path, err)
		}
		log.Printf("create file record: %s already exists, reusing it", path)
	} else {
		f.Close()
	}

	if _, err := UpdateRows(db, TableFiles, []string{"_data"}, []any{path}, "_id = ?", fileID); err != nil {
		return 0, "", fmt.Errorf("set file path: %w", err)
	}

	return fileID, path, nil
}

// GetFileRecord returns the files row with the given id.
func GetFileRecord(db *sql.DB, fileID int64) (domain.FileRecord, error) {
	rec := domain.FileRecord{ID: fileID}
	err := db.QueryRow(`SELECT _data FROM files WHERE _id = ?`, fileID).Scan(&rec.Path)
	if err == sql.ErrNoRows {
		return rec, fmt.Errorf("file %d: no such record", fileID)
	}
	return rec, err
}
