package model

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultiChoice  QuestionType = "MULTI_CHOICE"
	QuestionTypeTrueFalse    QuestionType = "TRUE_FALSE"
	QuestionTypeFillBlank    QuestionType = "FILL_BLANK"
	QuestionTypeShortAnswer  QuestionType = "SHORT_ANSWER"
)

// Objective reports whether the type is machine-gradable at submission time.
func (t QuestionType) Objective() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeTrueFalse:
		return true
	}
	return false
}

// QuestionOption is one choice of a choice-type question. Correctness data
// is immutable for the lifetime of any session referencing the question so
// grading stays reproducible.
type QuestionOption struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect bool      `json:"is_correct"`
}

// Question represents a single paper question with its weight on the paper.
type Question struct {
	ID       uuid.UUID        `json:"id"`
	PaperID  uuid.UUID        `json:"paper_id"`
	Text     string           `json:"text"`
	Type     QuestionType     `json:"type"`
	Weight   float64          `json:"weight"`
	OrderNum int              `json:"order_num"`
	Options  []QuestionOption `json:"options,omitempty"`
}

// QuestionForStudent is a question without correctness flags, sent to students.
type QuestionForStudent struct {
	ID       uuid.UUID          `json:"id"`
	Text     string             `json:"text"`
	Type     QuestionType       `json:"type"`
	Weight   float64            `json:"weight"`
	OrderNum int                `json:"order_num"`
	Options  []OptionForStudent `json:"options,omitempty"`
}

// OptionForStudent is an option stripped of its correctness flag.
type OptionForStudent struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// ForStudent strips correctness data for delivery inside a paper snapshot.
func (q *Question) ForStudent() QuestionForStudent {
	out := QuestionForStudent{
		ID:       q.ID,
		Text:     q.Text,
		Type:     q.Type,
		Weight:   q.Weight,
		OrderNum: q.OrderNum,
	}
	for _, opt := range q.Options {
		out.Options = append(out.Options, OptionForStudent{ID: opt.ID, Text: opt.Text})
	}
	return out
}
