package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"zooclient/internal/domain"
)

const itemColumns = `_id, done, uploaded, subjectId, zooniverseId, groupId,
	locationStandardUriRemote, locationStandardUri, locationStandardDownloaded,
	locationThumbnailUriRemote, locationThumbnailUri, locationThumbnailDownloaded,
	locationInvertedUriRemote, locationInvertedUri, locationInvertedDownloaded,
	favorite, dateTimeDone`

// classifiableWhere finds items that have not been classified and whose
// three image variants have all finished downloading.
const classifiableWhere = `done = 0
	AND locationStandardDownloaded = 1
	AND locationThumbnailDownloaded = 1
	AND locationInvertedDownloaded = 1`

func scanItem(row interface{ Scan(...any) error }) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(
		&it.ID, &it.Done, &it.Uploaded, &it.SubjectID, &it.ZooniverseID, &it.GroupID,
		&it.LocationStandardRemote, &it.LocationStandard, &it.LocationStandardDownloaded,
		&it.LocationThumbnailRemote, &it.LocationThumbnail, &it.LocationThumbnailDownloaded,
		&it.LocationInvertedRemote, &it.LocationInverted, &it.LocationInvertedDownloaded,
		&it.Favorite, &it.DateTimeDone,
	)
	return it, err
}

// QueryItems returns items matching the given where clause (internal column
// names), ordered and limited as requested. An empty where clause returns
// everything; limit <= 0 means no limit.
func QueryItems(db *sql.DB, where string, args []any, orderBy string, limit int) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if where != "" {
		query += ` WHERE ` + where
	}
	if orderBy == "" {
		orderBy = "_id ASC"
	}
	query += ` ORDER BY ` + orderBy
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem returns the item with the given row id.
func GetItem(db *sql.DB, id int64) (domain.Item, error) {
	row := db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE _id = ?`, id)
	return scanItem(row)
}

// NextClassifiableItem returns the oldest item that is ready to classify,
// or nil when the local cache has none. Oldest first: the earliest rows are
// the most likely to have been fully, synchronously downloaded.
func NextClassifiableItem(db *sql.DB) (*domain.Item, error) {
	items, err := QueryItems(db, classifiableWhere, nil, "_id ASC", 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// CountClassifiableItems reports how many items are ready to classify.
func CountClassifiableItems(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM items WHERE ` + classifiableWhere).Scan(&count)
	return count, err
}

// SaveClassification persists one finished classification as a single
// transaction: the ordered answer rows, their checkbox rows, and the item's
// done/favorite/timestamp update. Any failure rolls the whole batch back.
func SaveClassification(db *sql.DB, itemID int64, rec domain.ClassificationRecord, now time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmtAnswer, err := tx.Prepare(
		`INSERT INTO classification_answers (itemId, sequence, questionId, answerId)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmtAnswer.Close()

	stmtCheckbox, err := tx.Prepare(
		`INSERT INTO classification_checkboxes (itemId, sequence, questionId, checkboxId)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmtCheckbox.Close()

	for sequence, answer := range rec.Answers {
		if _, err := stmtAnswer.Exec(itemID, sequence, answer.QuestionID, answer.AnswerID); err != nil {
			return err
		}
		for _, checkboxID := range answer.CheckboxIDs {
			if _, err := stmtCheckbox.Exec(itemID, sequence, answer.QuestionID, checkboxID); err != nil {
				return err
			}
		}
	}

	res, err := tx.Exec(
		`UPDATE items SET done = 1, dateTimeDone = ?, favorite = ? WHERE _id = ?`,
		now.UTC().Format("2006-01-02T15:04:05Z"), rec.Favorite, itemID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("save classification: item %d not found", itemID)
	}

	return tx.Commit()
}

// DeleteItemCascade removes an item together with its classification rows,
// its three file rows and the cached files on disk. Referential integrity is
// by convention only, so the cascade is done explicitly here.
func DeleteItemCascade(db *sql.DB, itemID int64) error {
	it, err := GetItem(db, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("delete item %d: no such item", itemID)
		}
		return err
	}

	for _, ref := range []string{it.LocationStandard, it.LocationThumbnail, it.LocationInverted} {
		if ref == "" {
			continue
		}
		fileID, ok := parseFileRef(ref)
		if !ok {
			log.Printf("delete item %d: unrecognized file ref %q", itemID, ref)
			continue
		}
		if err := deleteFileRecord(db, fileID); err != nil {
			log.Printf("delete item %d: removing file %d: %v", itemID, fileID, err)
		}
	}

	// Not every item has classification rows, so zero deletions are fine.
	if _, err := DeleteRows(db, TableAnswers, "itemId = ?", itemID); err != nil {
		return err
	}
	if _, err := DeleteRows(db, TableCheckboxes, "itemId = ?", itemID); err != nil {
		return err
	}

	affected, err := DeleteRows(db, TableItems, "_id = ?", itemID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("delete item %d: no rows removed", itemID)
	}
	return nil
}

// deleteFileRecord removes the on-disk cached file (best effort) and its row.
func deleteFileRecord(db *sql.DB, fileID int64) error {
	var path string
	err := db.QueryRow(`SELECT _data FROM files WHERE _id = ?`, fileID).Scan(&path)
	if err != nil {
		return err
	}
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("delete file %d: remove %s: %v", fileID, path, err)
		}
	}
	_, err = DeleteRows(db, TableFiles, "_id = ?", fileID)
	return err
}
