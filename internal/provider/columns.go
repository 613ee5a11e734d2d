package provider

import "sort"

// Public-to-internal column dictionaries, one per resource kind. Callers
// address fields by the public names below; anything else is silently
// dropped so unknown names can neither leak internal columns nor smuggle
// arbitrary SQL identifiers into a query.

var itemColumnMap = map[string]string{
	"id":                          "_id",
	"done":                        "done",
	"uploaded":                    "uploaded",
	"subjectId":                   "subjectId",
	"zooniverseId":                "zooniverseId",
	"groupId":                     "groupId",
	"locationStandardUriRemote":   "locationStandardUriRemote",
	"locationStandardUri":         "locationStandardUri",
	"locationStandardDownloaded":  "locationStandardDownloaded",
	"locationThumbnailUriRemote":  "locationThumbnailUriRemote",
	"locationThumbnailUri":        "locationThumbnailUri",
	"locationThumbnailDownloaded": "locationThumbnailDownloaded",
	"locationInvertedUriRemote":   "locationInvertedUriRemote",
	"locationInvertedUri":         "locationInvertedUri",
	"locationInvertedDownloaded":  "locationInvertedDownloaded",
	"favorite":                    "favorite",
	"dateTimeDone":                "dateTimeDone",
}

var answerColumnMap = map[string]string{
	"id":         "_id",
	"itemId":     "itemId",
	"sequence":   "sequence",
	"questionId": "questionId",
	"answerId":   "answerId",
}

var checkboxColumnMap = map[string]string{
	"id":         "_id",
	"itemId":     "itemId",
	"sequence":   "sequence",
	"questionId": "questionId",
	"checkboxId": "checkboxId",
}

// mapValues translates public field names to internal columns, dropping
// unknown names and the row id (generated, never written). Keys are sorted
// so the produced SQL is deterministic.
func mapValues(values map[string]any, colMap map[string]string) (cols []string, vals []any) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "id" {
			continue
		}
		col, ok := colMap[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, values[key])
	}
	return cols, vals
}

// buildFilter translates an equality filter on public field names into a
// where clause on internal columns. Unknown names are dropped.
func buildFilter(filter map[string]any, colMap map[string]string) (where string, args []any) {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		col, ok := colMap[key]
		if !ok {
			continue
		}
		if where != "" {
			where += " AND "
		}
		where += col + " = ?"
		args = append(args, filter[key])
	}
	return where, args
}

// mapOrderBy translates a public field name into an internal "col ASC/DESC"
// order clause. Unknown names fall back to the default order.
func mapOrderBy(field string, descending bool, colMap map[string]string) string {
	col, ok := colMap[field]
	if !ok {
		return ""
	}
	if descending {
		return col + " DESC"
	}
	return col + " ASC"
}
