package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/examflow-backend/internal/model"
)

// GradeObjective scores a raw answer against an objective question and
// returns the awarded score. Subjective question types are never passed
// here; callers route them to manual grading instead.
//
// Single-choice and true/false answers carry one option ID. Multi-choice
// answers carry a comma-separated set of option IDs and score all or
// nothing: full weight when the set equals the correct set, zero
// otherwise. A malformed answer (bad UUID, unknown option, empty set,
// duplicate selection) returns ErrMalformedAnswer and must be rejected
// before any state changes.
func GradeObjective(q *model.Question, raw string) (float64, error) {
	switch q.Type {
	case model.QuestionTypeSingleChoice, model.QuestionTypeTrueFalse:
		return gradeSingle(q, raw)
	case model.QuestionTypeMultiChoice:
		return gradeMulti(q, raw)
	default:
		return 0, fmt.Errorf("question type %s is not objective", q.Type)
	}
}

func gradeSingle(q *model.Question, raw string) (float64, error) {
	optionID, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrMalformedAnswer
	}

	for _, opt := range q.Options {
		if opt.ID == optionID {
			if opt.IsCorrect {
				return q.Weight, nil
			}
			return 0, nil
		}
	}
	return 0, ErrMalformedAnswer
}

func gradeMulti(q *model.Question, raw string) (float64, error) {
	selected := make(map[uuid.UUID]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		optionID, err := uuid.Parse(part)
		if err != nil {
			return 0, ErrMalformedAnswer
		}
		if selected[optionID] {
			return 0, ErrMalformedAnswer
		}
		selected[optionID] = true
	}
	if len(selected) == 0 {
		return 0, ErrMalformedAnswer
	}

	known := make(map[uuid.UUID]bool, len(q.Options))
	correct := 0
	for _, opt := range q.Options {
		known[opt.ID] = true
		if opt.IsCorrect {
			correct++
		}
	}

	hit := 0
	for optionID := range selected {
		if !known[optionID] {
			return 0, ErrMalformedAnswer
		}
		for _, opt := range q.Options {
			if opt.ID == optionID && opt.IsCorrect {
				hit++
			}
		}
	}

	if hit == correct && len(selected) == correct {
		return q.Weight, nil
	}
	return 0, nil
}
