package classify

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"zooclient/internal/decisiontree"
	"zooclient/internal/domain"
	"zooclient/internal/provider"
)

// ErrFlowFinished is returned when an answer arrives after the
// classification has already completed.
var ErrFlowFinished = errors.New("classification already finished")

// fatalf is swapped out in tests. A failed classification commit means the
// batch rolled back and the user's work is gone; continuing as if nothing
// happened would silently drop classifications, so the process dies instead.
var fatalf = log.Fatalf

// Saver persists a finished classification. *provider.Provider implements it.
type Saver interface {
	SaveClassification(ref provider.Ref, rec domain.ClassificationRecord) error
}

// FlowConfig wires up one classification flow.
type FlowConfig struct {
	Tree  *decisiontree.Tree
	Saver Saver
	Item  provider.Ref

	// ShowDiscussQuestion leaves the "would you like to discuss" question
	// in the flow. When false it is answered "no" automatically.
	ShowDiscussQuestion bool

	// OnDiscuss fires when the user answers yes to the discuss question,
	// so the caller can open the discussion page.
	OnDiscuss func()

	// OnFinished fires after the classification has been committed. It is
	// skipped, not the commit, when the flow was closed in the meantime.
	OnFinished func()
}

// Flow walks one item through the decision tree, accumulating answers until
// a terminal answer completes the classification.
type Flow struct {
	cfg  FlowConfig
	tree *decisiontree.Tree

	mu      sync.Mutex
	acc     *Accumulator
	current *decisiontree.Question
	closed  bool

	saves sync.WaitGroup
}

func NewFlow(cfg FlowConfig) *Flow {
	return &Flow{
		cfg:     cfg,
		tree:    cfg.Tree,
		acc:     NewAccumulator(),
		current: cfg.Tree.Question(cfg.Tree.FirstQuestionID()),
	}
}

// CurrentQuestion returns the question awaiting an answer, or nil once the
// classification has finished.
func (f *Flow) CurrentQuestion() *decisiontree.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// SetFavorite flags the item to be favorited when the classification saves.
func (f *Flow) SetFavorite(favorite bool) {
	f.acc.SetFavorite(favorite)
}

// Restart wipes all recorded answers and returns to the first question.
func (f *Flow) Restart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acc.Reset()
	f.current = f.tree.Question(f.tree.FirstQuestionID())
}

// Restore resumes an interrupted classification at the given question with
// the given answers already recorded.
func (f *Flow) Restore(rec domain.ClassificationRecord, currentQuestionID string) error {
	q := f.tree.Question(currentQuestionID)
	if q == nil {
		return fmt.Errorf("restore: unknown question %q", currentQuestionID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acc.Restore(rec)
	f.current = q
	return nil
}

// Answer records the user's answer to the current question and advances the
// flow. A terminal answer completes the classification and kicks off the
// save in the background.
func (f *Flow) Answer(answerID string, checkboxIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answerLocked(answerID, checkboxIDs)
}

func (f *Flow) answerLocked(answerID string, checkboxIDs []string) error {
	q := f.current
	if q == nil {
		return ErrFlowFinished
	}
	if q.Answer(answerID) == nil {
		return fmt.Errorf("question %q has no answer %q", q.ID, answerID)
	}
	for _, id := range checkboxIDs {
		if q.Checkbox(id) == nil {
			return fmt.Errorf("question %q has no checkbox %q", q.ID, id)
		}
	}

	f.acc.Add(q.ID, answerID, checkboxIDs)

	if f.tree.IsDiscussQuestion(q.ID) &&
		answerID == f.tree.DiscussQuestionYesAnswerID() &&
		f.cfg.OnDiscuss != nil {
		f.cfg.OnDiscuss()
	}

	next := f.tree.NextQuestionForAnswer(q.ID, answerID)
	f.current = next

	// The discuss question can be switched off; it is then answered "no"
	// on the user's behalf so the saved classification looks the same
	// either way.
	if next != nil && f.tree.IsDiscussQuestion(next.ID) && !f.cfg.ShowDiscussQuestion {
		return f.answerLocked(f.tree.DiscussQuestionNoAnswerID(), nil)
	}

	if next == nil {
		f.finishLocked()
	}
	return nil
}

func (f *Flow) finishLocked() {
	if !f.acc.HasEnoughAnswers() {
		log.Printf("discarding classification for %s: only %d answer(s) recorded", f.cfg.Item, f.acc.Len())
		f.acc.Reset()
		return
	}

	// Snapshot and reset before the save runs, so a new classification can
	// begin immediately without racing the goroutine below.
	rec := f.acc.Snapshot()
	f.acc.Reset()

	f.saves.Add(1)
	go func() {
		defer f.saves.Done()
		if err := f.cfg.Saver.SaveClassification(f.cfg.Item, rec); err != nil {
			fatalf("saving classification for %s: %v", f.cfg.Item, err)
			return
		}
		f.mu.Lock()
		closed := f.closed
		f.mu.Unlock()
		if !closed && f.cfg.OnFinished != nil {
			f.cfg.OnFinished()
		}
	}()
}

// Close marks the flow torn down. A save already in flight still commits;
// only its completion callback is suppressed.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Wait blocks until any in-flight save has finished. Tests and shutdown
// paths use it.
func (f *Flow) Wait() {
	f.saves.Wait()
}
