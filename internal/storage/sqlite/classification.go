package sqlite

import (
	"database/sql"

	"zooclient/internal/domain"
)

// QueryAnswers returns classification answer rows matching the given where
// clause (internal column names).
func QueryAnswers(db *sql.DB, where string, args []any, orderBy string, limit int) ([]domain.AnswerRow, error) {
	query := `SELECT _id, itemId, sequence, questionId, answerId FROM classification_answers`
	if where != "" {
		query += ` WHERE ` + where
	}
	if orderBy == "" {
		orderBy = "_id ASC"
	}
	query += ` ORDER BY ` + orderBy
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AnswerRow
	for rows.Next() {
		var r domain.AnswerRow
		if err := rows.Scan(&r.ID, &r.ItemID, &r.Sequence, &r.QuestionID, &r.AnswerID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryCheckboxes returns classification checkbox rows matching the given
// where clause (internal column names).
func QueryCheckboxes(db *sql.DB, where string, args []any, orderBy string, limit int) ([]domain.CheckboxRow, error) {
	query := `SELECT _id, itemId, sequence, questionId, checkboxId FROM classification_checkboxes`
	if where != "" {
		query += ` WHERE ` + where
	}
	if orderBy == "" {
		orderBy = "_id ASC"
	}
	query += ` ORDER BY ` + orderBy
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CheckboxRow
	for rows.Next() {
		var r domain.CheckboxRow
		if err := rows.Scan(&r.ID, &r.ItemID, &r.Sequence, &r.QuestionID, &r.CheckboxID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
