package classify

import (
	"errors"
	"sync"
	"testing"

	"zooclient/internal/decisiontree"
	"zooclient/internal/domain"
	"zooclient/internal/provider"
)

const flowTreeYAML = `
first_question_id: shape
discuss:
  question_id: discuss
  yes_answer_id: "yes"
  no_answer_id: "no"
questions:
  - id: shape
    text: "Is the galaxy smooth?"
    answers:
      - id: smooth
        text: "Smooth"
        next: odd
      - id: artifact
        text: "Star or artifact"
        next: discuss
  - id: odd
    text: "Anything odd?"
    checkboxes:
      - id: ring
        text: "Ring"
      - id: dust
        text: "Dust lane"
    answers:
      - id: "yes"
        text: "Yes"
        next: discuss
      - id: "no"
        text: "No"
        next: discuss
  - id: discuss
    text: "Discuss this object?"
    answers:
      - id: "yes"
        text: "Yes"
      - id: "no"
        text: "No"
`

type recordingSaver struct {
	mu    sync.Mutex
	saved []domain.ClassificationRecord
	refs  []provider.Ref
	err   error
}

func (s *recordingSaver) SaveClassification(ref provider.Ref, rec domain.ClassificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.refs = append(s.refs, ref)
	s.saved = append(s.saved, rec)
	return nil
}

func (s *recordingSaver) records() []domain.ClassificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ClassificationRecord(nil), s.saved...)
}

func newFlowTree(t *testing.T) *decisiontree.Tree {
	t.Helper()
	tree, err := decisiontree.Parse([]byte(flowTreeYAML))
	if err != nil {
		t.Fatalf("parse tree: %v", err)
	}
	return tree
}

func TestFlowCompletesAndSaves(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{}
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(7),
		ShowDiscussQuestion: true,
	})

	if err := flow.Answer("smooth", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	if err := flow.Answer("yes", []string{"ring", "dust"}); err != nil {
		t.Fatalf("answer odd: %v", err)
	}
	flow.SetFavorite(true)
	if err := flow.Answer("no", nil); err != nil {
		t.Fatalf("answer discuss: %v", err)
	}
	flow.Wait()

	recs := saver.records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 saved classification, got %d", len(recs))
	}
	rec := recs[0]
	if !rec.Favorite {
		t.Fatal("expected favorite flag to be saved")
	}
	if len(rec.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(rec.Answers))
	}
	if rec.Answers[1].QuestionID != "odd" || len(rec.Answers[1].CheckboxIDs) != 2 {
		t.Fatalf("unexpected second answer: %+v", rec.Answers[1])
	}
	if saver.refs[0] != provider.ItemRef(7) {
		t.Fatalf("saved against wrong item: %s", saver.refs[0])
	}

	if flow.CurrentQuestion() != nil {
		t.Fatal("expected flow to be finished")
	}
	if err := flow.Answer("smooth", nil); !errors.Is(err, ErrFlowFinished) {
		t.Fatalf("expected ErrFlowFinished, got %v", err)
	}
}

func TestFlowAutoSkipsDiscussQuestion(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{}
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: false,
	})

	if err := flow.Answer("smooth", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	if err := flow.Answer("no", nil); err != nil {
		t.Fatalf("answer odd: %v", err)
	}
	flow.Wait()

	recs := saver.records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 saved classification, got %d", len(recs))
	}
	answers := recs[0].Answers
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers including the auto-recorded one, got %d", len(answers))
	}
	last := answers[2]
	if last.QuestionID != "discuss" || last.AnswerID != "no" {
		t.Fatalf("expected auto-recorded discuss/no, got %+v", last)
	}
}

func TestFlowDiscussCallback(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{}
	discussed := false
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: true,
		OnDiscuss:           func() { discussed = true },
	})

	if err := flow.Answer("smooth", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	if err := flow.Answer("no", nil); err != nil {
		t.Fatalf("answer odd: %v", err)
	}
	if err := flow.Answer("yes", nil); err != nil {
		t.Fatalf("answer discuss: %v", err)
	}
	flow.Wait()

	if !discussed {
		t.Fatal("expected discuss callback to fire")
	}
	if len(saver.records()) != 1 {
		t.Fatal("expected classification to be saved")
	}
}

func TestFlowDiscardsSingleAnswer(t *testing.T) {
	// A one-question tree completes after a single answer, which is below
	// the persistence threshold.
	tree, err := decisiontree.Parse([]byte(`
questions:
  - id: only
    text: "Only question"
    answers:
      - id: done
        text: "Done"
`))
	if err != nil {
		t.Fatalf("parse tree: %v", err)
	}

	saver := &recordingSaver{}
	flow := NewFlow(FlowConfig{
		Tree:       tree,
		Saver:      saver,
		Item:       provider.ItemRef(1),
		OnFinished: func() { t.Error("callback must not fire for a discarded classification") },
	})

	if err := flow.Answer("done", nil); err != nil {
		t.Fatalf("answer: %v", err)
	}
	flow.Wait()

	if len(saver.records()) != 0 {
		t.Fatalf("single-answer classification must never be persisted, got %d saves", len(saver.records()))
	}
	if flow.acc.Len() != 0 {
		t.Fatal("discarded classification must reset the accumulator")
	}
}

func TestFlowTwoAnswersViaAutoSkipAreSaved(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{}
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: false,
	})

	// "artifact" jumps straight to the discuss question, which is skipped
	// with an auto-recorded "no": exactly two answers, which is enough.
	if err := flow.Answer("artifact", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	flow.Wait()

	recs := saver.records()
	if len(recs) != 1 {
		t.Fatalf("expected 2-answer classification to be saved, got %d", len(recs))
	}
	if len(recs[0].Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(recs[0].Answers))
	}
}

func TestFlowRejectsUnknownAnswerAndCheckbox(t *testing.T) {
	tree := newFlowTree(t)
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               &recordingSaver{},
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: true,
	})

	if err := flow.Answer("nope", nil); err == nil {
		t.Fatal("expected error for unknown answer")
	}
	if err := flow.Answer("smooth", []string{"ring"}); err == nil {
		t.Fatal("expected error for checkbox on question without checkboxes")
	}
	if flow.CurrentQuestion().ID != "shape" {
		t.Fatal("rejected answer must not advance the flow")
	}
	if (&Accumulator{}).HasEnoughAnswers() {
		t.Fatal("empty accumulator must not count as enough answers")
	}
}

func TestFlowCloseSuppressesCallbackNotCommit(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{}
	finished := false
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: false,
		OnFinished:          func() { finished = true },
	})

	if err := flow.Answer("smooth", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	flow.Close()
	if err := flow.Answer("no", nil); err != nil {
		t.Fatalf("answer odd: %v", err)
	}
	flow.Wait()

	if len(saver.records()) != 1 {
		t.Fatal("commit must still happen after Close")
	}
	if finished {
		t.Fatal("completion callback must be suppressed after Close")
	}
}

func TestFlowRestartWipesAnswers(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{}
	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: true,
	})

	if err := flow.Answer("smooth", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	flow.Restart()

	if flow.CurrentQuestion().ID != "shape" {
		t.Fatalf("expected restart at first question, got %q", flow.CurrentQuestion().ID)
	}
	if flow.acc.Len() != 0 {
		t.Fatalf("expected empty accumulator after restart, got %d", flow.acc.Len())
	}
}

func TestFlowFatalOnSaveFailure(t *testing.T) {
	tree := newFlowTree(t)
	saver := &recordingSaver{err: errors.New("disk gone")}

	var fatalMsg string
	origFatalf := fatalf
	fatalf = func(format string, args ...any) { fatalMsg = format }
	defer func() { fatalf = origFatalf }()

	flow := NewFlow(FlowConfig{
		Tree:                tree,
		Saver:               saver,
		Item:                provider.ItemRef(1),
		ShowDiscussQuestion: false,
		OnFinished:          func() { t.Error("callback must not fire on failed save") },
	})

	if err := flow.Answer("smooth", nil); err != nil {
		t.Fatalf("answer shape: %v", err)
	}
	if err := flow.Answer("no", nil); err != nil {
		t.Fatalf("answer odd: %v", err)
	}
	flow.Wait()

	if fatalMsg == "" {
		t.Fatal("expected fatal log on save failure")
	}
}

func TestAccumulatorSnapshotIsDeepCopy(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("q1", "a1", []string{"c1"})
	acc.Add("q2", "a2", nil)
	acc.SetFavorite(true)

	snap := acc.Snapshot()
	acc.Reset()

	if acc.Len() != 0 {
		t.Fatal("reset must empty the accumulator")
	}
	if len(snap.Answers) != 2 || !snap.Favorite {
		t.Fatalf("snapshot lost state: %+v", snap)
	}

	snap.Answers[0].CheckboxIDs[0] = "mutated"
	second := acc.Snapshot()
	if len(second.Answers) != 0 {
		t.Fatal("mutating a snapshot must not affect the accumulator")
	}
}

func TestAccumulatorStateRoundTrip(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("shape", "smooth", nil)
	acc.Add("odd", "yes", []string{"ring"})
	acc.SetFavorite(true)

	data, err := acc.MarshalState()
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}

	restored := NewAccumulator()
	if err := restored.RestoreState(data); err != nil {
		t.Fatalf("restore state: %v", err)
	}

	before := acc.Snapshot()
	after := restored.Snapshot()
	if len(after.Answers) != len(before.Answers) || after.Favorite != before.Favorite {
		t.Fatalf("round trip mismatch: %+v vs %+v", before, after)
	}
	for i := range before.Answers {
		if before.Answers[i].QuestionID != after.Answers[i].QuestionID ||
			before.Answers[i].AnswerID != after.Answers[i].AnswerID ||
			len(before.Answers[i].CheckboxIDs) != len(after.Answers[i].CheckboxIDs) {
			t.Fatalf("answer %d mismatch: %+v vs %+v", i, before.Answers[i], after.Answers[i])
		}
	}
}
