package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/examflow-backend/internal/model"
)

// ScoreAggregator recomputes the aggregate score record of a session from
// its answer ledger. Every mutation of the ledger routes through here so
// the aggregate can never drift from the records it summarizes.
type ScoreAggregator struct {
	answerStore  AnswerStore
	scoreStore   ScoreStore
	sessionStore SessionStore

	retakeThreshold float64
	now             func() time.Time
}

func NewScoreAggregator(
	answerStore AnswerStore,
	scoreStore ScoreStore,
	sessionStore SessionStore,
	retakeThreshold float64,
) *ScoreAggregator {
	return &ScoreAggregator{
		answerStore:     answerStore,
		scoreStore:      scoreStore,
		sessionStore:    sessionStore,
		retakeThreshold: retakeThreshold,
		now:             time.Now,
	}
}

// Recompute sums the session's ledger into its score record, re-evaluates
// the retake flag and returns the recorded total. Callers must hold the
// session lock.
//
// The retake policy only fires once the session is submitted and every
// record is graded; before that the ledger total is partial and says
// nothing about the final outcome. Absent and disciplinary sessions need
// a retake unconditionally, and a disciplinary mark forces the recorded
// total to zero no matter what the ledger sums to.
func (a *ScoreAggregator) Recompute(ctx context.Context, sess *model.ExamSession) (float64, error) {
	records, err := a.answerStore.ListBySession(ctx, sess.ExamID, sess.StudentID)
	if err != nil {
		return 0, fmt.Errorf("list answer records: %w", err)
	}

	total := 0.0
	allGraded := true
	for _, rec := range records {
		total += rec.Score
		if rec.Status != model.GradingStatusGraded {
			allGraded = false
		}
	}

	if sess.Disciplinary {
		total = 0
	}

	now := a.now()
	if err := a.scoreStore.Ensure(ctx, sess.ExamID, sess.StudentID, now); err != nil {
		return 0, fmt.Errorf("ensure score record: %w", err)
	}
	if err := a.scoreStore.SetTotal(ctx, sess.ExamID, sess.StudentID, total, now); err != nil {
		return 0, fmt.Errorf("set score total: %w", err)
	}

	switch {
	case sess.Disciplinary || sess.Absent:
		if err := a.sessionStore.SetRetakeNeeded(ctx, sess.ExamID, sess.StudentID, true); err != nil {
			return 0, fmt.Errorf("set retake flag: %w", err)
		}
	case sess.SubmittedAt != nil && allGraded:
		needed := total < a.retakeThreshold
		if err := a.sessionStore.SetRetakeNeeded(ctx, sess.ExamID, sess.StudentID, needed); err != nil {
			return 0, fmt.Errorf("set retake flag: %w", err)
		}
	}

	return total, nil
}
