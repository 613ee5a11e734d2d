// Package decisiontree holds the static question graph a classification
// walks through. The tree is loaded once from YAML and never mutated, so
// it is safe to share across goroutines.
package decisiontree

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Answer is one selectable answer of a question. Next names the question
// the flow moves to; an empty Next ends the classification.
type Answer struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
	Icon string `yaml:"icon,omitempty"`
	Next string `yaml:"next,omitempty"`
}

// Checkbox is one multi-select option shown alongside a question's answers.
// Checkboxes never steer the flow; only the chosen answer does.
type Checkbox struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
	Icon string `yaml:"icon,omitempty"`
}

// Question is one node of the tree.
type Question struct {
	ID         string     `yaml:"id"`
	Title      string     `yaml:"title,omitempty"`
	Text       string     `yaml:"text"`
	Checkboxes []Checkbox `yaml:"checkboxes,omitempty"`
	Answers    []Answer   `yaml:"answers"`
}

// discussConfig marks one question as the "talk" prompt, which the flow
// treats specially (auto-skip, discussion-page callback).
type discussConfig struct {
	QuestionID  string `yaml:"question_id"`
	YesAnswerID string `yaml:"yes_answer_id"`
	NoAnswerID  string `yaml:"no_answer_id"`
}

type treeFile struct {
	FirstQuestionID string        `yaml:"first_question_id"`
	Discuss         discussConfig `yaml:"discuss,omitempty"`
	Questions       []Question    `yaml:"questions"`
}

// Tree is the loaded, validated question graph.
type Tree struct {
	firstQuestionID string
	discuss         discussConfig
	questions       map[string]*Question
}

// Load reads and validates a decision tree from a YAML file.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading decision tree: %w", err)
	}
	return Parse(data)
}

// Parse builds a Tree from YAML bytes, rejecting dangling question
// references up front so traversal can never fall off the graph.
func Parse(data []byte) (*Tree, error) {
	var f treeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing decision tree: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("decision tree has no questions")
	}

	t := &Tree{
		firstQuestionID: f.FirstQuestionID,
		discuss:         f.Discuss,
		questions:       make(map[string]*Question, len(f.Questions)),
	}
	for i := range f.Questions {
		q := &f.Questions[i]
		if q.ID == "" {
			return nil, fmt.Errorf("decision tree: question %d has no id", i)
		}
		if _, dup := t.questions[q.ID]; dup {
			return nil, fmt.Errorf("decision tree: duplicate question id %q", q.ID)
		}
		t.questions[q.ID] = q
	}

	if t.firstQuestionID == "" {
		t.firstQuestionID = f.Questions[0].ID
	}
	if _, ok := t.questions[t.firstQuestionID]; !ok {
		return nil, fmt.Errorf("decision tree: first question %q does not exist", t.firstQuestionID)
	}

	for _, q := range t.questions {
		if len(q.Answers) == 0 {
			return nil, fmt.Errorf("decision tree: question %q has no answers", q.ID)
		}
		for _, a := range q.Answers {
			if a.Next == "" {
				continue
			}
			if _, ok := t.questions[a.Next]; !ok {
				return nil, fmt.Errorf("decision tree: question %q answer %q points at unknown question %q", q.ID, a.ID, a.Next)
			}
		}
	}

	if err := t.validateDiscuss(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) validateDiscuss() error {
	d := t.discuss
	if d.QuestionID == "" {
		return nil
	}
	q, ok := t.questions[d.QuestionID]
	if !ok {
		return fmt.Errorf("decision tree: discuss question %q does not exist", d.QuestionID)
	}
	if d.YesAnswerID == "" || d.NoAnswerID == "" {
		return fmt.Errorf("decision tree: discuss question %q needs yes and no answer ids", d.QuestionID)
	}
	for _, id := range []string{d.YesAnswerID, d.NoAnswerID} {
		if q.Answer(id) == nil {
			return fmt.Errorf("decision tree: discuss question %q has no answer %q", d.QuestionID, id)
		}
	}
	return nil
}

// FirstQuestionID returns the id of the question a fresh classification
// starts at.
func (t *Tree) FirstQuestionID() string { return t.firstQuestionID }

// Question returns the question with the given id, or nil.
func (t *Tree) Question(id string) *Question {
	return t.questions[id]
}

// Answer returns the question's answer with the given id, or nil.
func (q *Question) Answer(id string) *Answer {
	for i := range q.Answers {
		if q.Answers[i].ID == id {
			return &q.Answers[i]
		}
	}
	return nil
}

// Checkbox returns the question's checkbox with the given id, or nil.
func (q *Question) Checkbox(id string) *Checkbox {
	for i := range q.Checkboxes {
		if q.Checkboxes[i].ID == id {
			return &q.Checkboxes[i]
		}
	}
	return nil
}

// NextQuestionForAnswer returns the question that follows the given answer,
// or nil when that answer ends the classification. Unknown question or
// answer ids also return nil.
func (t *Tree) NextQuestionForAnswer(questionID, answerID string) *Question {
	q := t.Question(questionID)
	if q == nil {
		return nil
	}
	a := q.Answer(answerID)
	if a == nil || a.Next == "" {
		return nil
	}
	return t.questions[a.Next]
}

// IsDiscussQuestion reports whether the given question is the configured
// "talk" prompt.
func (t *Tree) IsDiscussQuestion(id string) bool {
	return t.discuss.QuestionID != "" && id == t.discuss.QuestionID
}

// DiscussQuestionYesAnswerID returns the answer id meaning "yes, take me to
// the discussion page". Empty when no discuss question is configured.
func (t *Tree) DiscussQuestionYesAnswerID() string { return t.discuss.YesAnswerID }

// DiscussQuestionNoAnswerID returns the answer id recorded when the discuss
// question is skipped.
func (t *Tree) DiscussQuestionNoAnswerID() string { return t.discuss.NoAnswerID }
