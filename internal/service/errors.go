package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Session lifecycle errors. Every transition returns one of these typed
// results instead of surfacing storage faults; handlers map them to error
// codes. Precondition failures leave state unchanged.
var (
	ErrExamNotOpen         = errors.New("exam has not opened yet")
	ErrExamWindowClosed    = errors.New("exam window has closed")
	ErrNotAuthorized       = errors.New("student has no grant for this exam")
	ErrSessionNotActive    = errors.New("no in-progress session for this exam")
	ErrAlreadySubmitted    = errors.New("exam already submitted")
	ErrMarkedAbsent        = errors.New("session is marked absent")
	ErrMarkedDisciplinary  = errors.New("session is marked disciplinary")
	ErrQuestionNotInPaper  = errors.New("question does not belong to this exam's paper")
	ErrMalformedAnswer     = errors.New("answer is malformed for the question type")
	ErrSessionNotStarted   = errors.New("student has not started this exam")
	ErrNotExamTeacher      = errors.New("exam belongs to another teacher")
	ErrAnswerNotSubjective = errors.New("answer record is not manually gradable")
	ErrScoreOutOfRange     = errors.New("score exceeds the question weight")
)

// IncompleteAnswersError rejects a student submit while questions remain
// unanswered. It lists the missing question IDs so the client can point
// the student at them.
type IncompleteAnswersError struct {
	Missing []uuid.UUID
}

func (e *IncompleteAnswersError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = id.String()
	}
	return fmt.Sprintf("unanswered questions: %s", strings.Join(ids, ", "))
}
