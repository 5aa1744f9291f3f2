package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examflow-backend/internal/model"
)

// GradingService covers the teacher surface of the ledger: manual scoring
// of subjective answers and the per-exam result listing.
type GradingService struct {
	examStore     ExamStore
	sessionStore  SessionStore
	answerStore   AnswerStore
	questionStore QuestionStore
	resultStore   ResultStore
	aggregator    *ScoreAggregator
	locks         *SessionLocks
}

func NewGradingService(
	examStore ExamStore,
	sessionStore SessionStore,
	answerStore AnswerStore,
	questionStore QuestionStore,
	resultStore ResultStore,
	aggregator *ScoreAggregator,
	locks *SessionLocks,
) *GradingService {
	return &GradingService{
		examStore:     examStore,
		sessionStore:  sessionStore,
		answerStore:   answerStore,
		questionStore: questionStore,
		resultStore:   resultStore,
		aggregator:    aggregator,
		locks:         locks,
	}
}

// GradeAnswer writes a teacher's score on one subjective answer record and
// recomputes the aggregate. Regrading an already-graded record is allowed;
// the aggregate follows, and the retake flag flips in both directions once
// the session is fully graded.
func (g *GradingService) GradeAnswer(ctx context.Context, recordID uuid.UUID, teacherID int, score float64) (*model.AnswerRecord, error) {
	rec, err := g.answerStore.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get answer record: %w", err)
	}

	exam, err := g.examStore.GetByID(ctx, rec.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamTeacher
	}

	question, err := g.questionStore.GetByID(ctx, rec.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if question.Type.Objective() {
		return nil, ErrAnswerNotSubjective
	}
	if score < 0 || score > question.Weight {
		return nil, ErrScoreOutOfRange
	}

	unlock := g.locks.Lock(rec.ExamID, rec.StudentID)
	defer unlock()

	if err := g.answerStore.UpdateScore(ctx, recordID, score, model.GradingStatusGraded); err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}
	rec.Score = score
	rec.Status = model.GradingStatusGraded

	sess, err := g.sessionStore.GetByExamAndStudent(ctx, rec.ExamID, rec.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if _, err := g.aggregator.Recompute(ctx, sess); err != nil {
		return nil, fmt.Errorf("recompute score: %w", err)
	}

	return rec, nil
}

// ListResults returns the result rows of an exam for its owning teacher.
// limit <= 0 returns all rows.
func (g *GradingService) ListResults(ctx context.Context, examID uuid.UUID, teacherID, limit, offset int) ([]model.ExamResult, error) {
	exam, err := g.examStore.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamTeacher
	}

	results, err := g.resultStore.ListByExam(ctx, examID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}
