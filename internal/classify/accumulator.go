// Package classify drives a classification through the decision tree and
// hands the finished result to the provider.
package classify

import (
	"sync"

	"gopkg.in/yaml.v3"

	"zooclient/internal/domain"
)

// minAnswersToSave is the threshold below which a finished classification
// is considered an anomaly and discarded. A single recorded answer can only
// mean the flow was cut short.
const minAnswersToSave = 2

// Accumulator collects the answers of one classification in the order they
// were given. It is safe for concurrent use.
type Accumulator struct {
	mu  sync.Mutex
	rec domain.ClassificationRecord
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends one answered question, with any checkboxes ticked alongside it.
func (a *Accumulator) Add(questionID, answerID string, checkboxIDs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.Answers = append(a.rec.Answers, domain.RecordedAnswer{
		QuestionID:  questionID,
		AnswerID:    answerID,
		CheckboxIDs: append([]string(nil), checkboxIDs...),
	})
}

// SetFavorite flags the item to be favorited when the classification is
// saved.
func (a *Accumulator) SetFavorite(favorite bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.Favorite = favorite
}

func (a *Accumulator) Favorite() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec.Favorite
}

// Len returns the number of answers recorded so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rec.Answers)
}

// HasEnoughAnswers reports whether the classification is substantial enough
// to persist.
func (a *Accumulator) HasEnoughAnswers() bool {
	return a.Len() >= minAnswersToSave
}

// Reset wipes the accumulator for the next classification.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec = domain.ClassificationRecord{}
}

// Snapshot returns a deep copy of the current state. The copy and the
// accumulator share nothing, so the caller may hand it to another goroutine
// and Reset immediately.
func (a *Accumulator) Snapshot() domain.ClassificationRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec.Clone()
}

// Restore replaces the accumulator's state with a deep copy of rec, for
// resuming an interrupted classification.
func (a *Accumulator) Restore(rec domain.ClassificationRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec = rec.Clone()
}

// MarshalState serializes the in-progress classification so it survives a
// process restart.
func (a *Accumulator) MarshalState() ([]byte, error) {
	return yaml.Marshal(a.Snapshot())
}

// RestoreState is the inverse of MarshalState.
func (a *Accumulator) RestoreState(data []byte) error {
	var rec domain.ClassificationRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return err
	}
	a.Restore(rec)
	return nil
}
