package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/examflow-backend/internal/model"
)

func choiceQuestion(qt model.QuestionType, weight float64, correct ...bool) *model.Question {
	q := &model.Question{
		ID:     uuid.New(),
		Type:   qt,
		Weight: weight,
	}
	for _, c := range correct {
		q.Options = append(q.Options, model.QuestionOption{
			ID:        uuid.New(),
			Text:      fmt.Sprintf("option %d", len(q.Options)+1),
			IsCorrect: c,
		})
	}
	return q
}

func TestGradeSingleChoice(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeSingleChoice, 4, false, true, false)

	score, err := GradeObjective(q, q.Options[1].ID.String())
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 4 {
		t.Fatalf("expected full weight 4, got %v", score)
	}

	score, err = GradeObjective(q, q.Options[0].ID.String())
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected 0 for wrong option, got %v", score)
	}
}

func TestGradeTrueFalse(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeTrueFalse, 2, true, false)

	score, err := GradeObjective(q, q.Options[0].ID.String())
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 2 {
		t.Fatalf("expected full weight 2, got %v", score)
	}
}

func TestGradeSingleChoiceMalformed(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeSingleChoice, 4, true, false)

	cases := []struct {
		name string
		raw  string
	}{
		{"not a uuid", "definitely-not-a-uuid"},
		{"empty", ""},
		{"unknown option", uuid.New().String()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := GradeObjective(q, tc.raw); !errors.Is(err, ErrMalformedAnswer) {
				t.Fatalf("expected ErrMalformedAnswer, got %v", err)
			}
		})
	}
}

func TestGradeMultiChoiceAllOrNothing(t *testing.T) {
	// Options 0 and 2 are correct.
	q := choiceQuestion(model.QuestionTypeMultiChoice, 6, true, false, true, false)

	exact := q.Options[0].ID.String() + "," + q.Options[2].ID.String()
	score, err := GradeObjective(q, exact)
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 6 {
		t.Fatalf("expected full weight for exact set, got %v", score)
	}

	// Order must not matter.
	reversed := q.Options[2].ID.String() + ", " + q.Options[0].ID.String()
	score, err = GradeObjective(q, reversed)
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 6 {
		t.Fatalf("expected full weight regardless of order, got %v", score)
	}

	// Partial credit never applies.
	partial := q.Options[0].ID.String()
	score, err = GradeObjective(q, partial)
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected 0 for partial set, got %v", score)
	}

	// Superset scores zero too.
	superset := exact + "," + q.Options[1].ID.String()
	score, err = GradeObjective(q, superset)
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected 0 for superset, got %v", score)
	}
}

func TestGradeMultiChoiceMalformed(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeMultiChoice, 6, true, true, false)

	cases := []struct {
		name string
		raw  string
	}{
		{"empty set", ""},
		{"only separators", ", ,"},
		{"bad uuid in set", q.Options[0].ID.String() + ",nope"},
		{"unknown option in set", q.Options[0].ID.String() + "," + uuid.New().String()},
		{"duplicate selection", q.Options[0].ID.String() + "," + q.Options[0].ID.String()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := GradeObjective(q, tc.raw); !errors.Is(err, ErrMalformedAnswer) {
				t.Fatalf("expected ErrMalformedAnswer, got %v", err)
			}
		})
	}
}
