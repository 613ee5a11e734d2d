package domain

// Item is one subject waiting to be classified, together with the local
// cache state of its three image variants.
type Item struct {
	ID           int64
	Done         bool // whether the user has classified it already
	Uploaded     bool // whether its classification has been submitted
	SubjectID    string
	ZooniverseID string
	GroupID      string

	// Each image variant has the original remote URL, a file ref
	// ("file/{id}") pointing into the files table, and a downloaded flag.
	LocationStandardRemote      string
	LocationStandard            string
	LocationStandardDownloaded  bool
	LocationThumbnailRemote     string
	LocationThumbnail           string
	LocationThumbnailDownloaded bool
	LocationInvertedRemote      string
	LocationInverted            string
	LocationInvertedDownloaded  bool

	Favorite     bool
	DateTimeDone string // ISO-8601 UTC, empty until Done
}

// Classifiable reports whether the item may be offered for classification:
// not yet done, and all three image variants fully downloaded.
func (it *Item) Classifiable() bool {
	return !it.Done &&
		it.LocationStandardDownloaded &&
		it.LocationThumbnailDownloaded &&
		it.LocationInvertedDownloaded
}

// FileRecord maps a file id to the absolute path of a cached image on disk.
type FileRecord struct {
	ID   int64
	Path string
}

// Subject is what the remote API hands us before it becomes an Item.
type Subject struct {
	SubjectID         string
	ZooniverseID      string
	GroupID           string
	LocationStandard  string
	LocationThumbnail string
	LocationInverted  string
}

// AnswerRow is one denormalized answer of a persisted classification.
type AnswerRow struct {
	ID         int64
	ItemID     int64
	Sequence   int
	QuestionID string
	AnswerID   string
}

// CheckboxRow is one checkbox selected alongside an answer.
type CheckboxRow struct {
	ID         int64
	ItemID     int64
	Sequence   int
	QuestionID string
	CheckboxID string
}

// RecordedAnswer is one (question, answer, checkboxes) triple of a
// classification in traversal order.
type RecordedAnswer struct {
	QuestionID  string   `json:"question_id" yaml:"question_id"`
	AnswerID    string   `json:"answer_id" yaml:"answer_id"`
	CheckboxIDs []string `json:"checkbox_ids,omitempty" yaml:"checkbox_ids,omitempty"`
}

// ClassificationRecord is an immutable snapshot of a finished classification,
// handed to the storage layer as one unit.
type ClassificationRecord struct {
	Answers  []RecordedAnswer `json:"answers" yaml:"answers"`
	Favorite bool             `json:"favorite" yaml:"favorite"`
}

// Clone returns a deep copy so neither side of a hand-off can mutate the
// other's answers.
func (r ClassificationRecord) Clone() ClassificationRecord {
	out := ClassificationRecord{Favorite: r.Favorite}
	if r.Answers != nil {
		out.Answers = make([]RecordedAnswer, len(r.Answers))
		for i, a := range r.Answers {
			out.Answers[i] = RecordedAnswer{
				QuestionID: a.QuestionID,
				AnswerID:   a.AnswerID,
			}
			if a.CheckboxIDs != nil {
				out.Answers[i].CheckboxIDs = append([]string(nil), a.CheckboxIDs...)
			}
		}
	}
	return out
}
