package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examflow-backend/internal/model"
)

// Store ports implemented by the pgx repositories and by the in-memory
// stores used in tests. Lookups return pgx.ErrNoRows when nothing matches.

// ExamStore resolves exams and the boundary scans the sweep runs on.
type ExamStore interface {
	GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	// ListEndingBetween returns exams whose end boundary falls in (from, to].
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Exam, error)
	// ListLateStart returns exams that started at or before startedBefore
	// and whose end boundary is still at or after relevantAfter.
	ListLateStart(ctx context.Context, startedBefore, relevantAfter time.Time) ([]model.Exam, error)
}

// SessionStore persists exam session rows, one per (exam, student).
type SessionStore interface {
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error)
	// Create inserts a session row. On a concurrent duplicate it returns
	// pgx.ErrNoRows (ON CONFLICT DO NOTHING semantics).
	Create(ctx context.Context, s *model.ExamSession) error
	// MarkSubmitted sets submitted_at once. Returns false when another
	// writer already finalized the session.
	MarkSubmitted(ctx context.Context, examID uuid.UUID, studentID int, at time.Time) (bool, error)
	MarkDisciplinary(ctx context.Context, examID uuid.UUID, studentID int, comment string) error
	SetRetakeNeeded(ctx context.Context, examID uuid.UUID, studentID int, needed bool) error
	ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)
}

// AnswerStore persists the answer ledger.
type AnswerStore interface {
	GetByID(ctx context.Context, recordID uuid.UUID) (*model.AnswerRecord, error)
	ListBySession(ctx context.Context, examID uuid.UUID, studentID int) ([]model.AnswerRecord, error)
	// Upsert creates or replaces the record for (exam, student, question).
	Upsert(ctx context.Context, rec *model.AnswerRecord) error
	// InsertMissing adds records only where none exist yet (DO NOTHING on
	// conflict) so concurrent force-submits stay commutative.
	InsertMissing(ctx context.Context, recs []model.AnswerRecord) error
	UpdateScore(ctx context.Context, recordID uuid.UUID, score float64, status model.GradingStatus) error
}

// ScoreStore persists the per-session aggregate record.
type ScoreStore interface {
	Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ScoreRecord, error)
	// Ensure creates a zero score record if none exists yet.
	Ensure(ctx context.Context, examID uuid.UUID, studentID int, at time.Time) error
	SetTotal(ctx context.Context, examID uuid.UUID, studentID int, total float64, at time.Time) error
}

// QuestionStore resolves paper content. Question and option data are
// immutable while any session references them.
type QuestionStore interface {
	GetByID(ctx context.Context, questionID uuid.UUID) (*model.Question, error)
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Question, error)
}

// ResultStore assembles the teacher-facing result listing of an exam:
// one row per session, joined with the student and the score record.
// limit <= 0 returns all rows.
type ResultStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResult, error)
}

// GrantStore resolves exam authorizations.
type GrantStore interface {
	Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamGrant, error)
	// ListAbsentCandidates returns students holding a non-expiring grant
	// for the exam who have no session row yet.
	ListAbsentCandidates(ctx context.Context, examID uuid.UUID) ([]int, error)
}

// SessionLocks serializes transitions per (exam, student) inside the
// process. Cross-process safety rests on the conditional UPDATE guards in
// the stores (submitted_at IS NULL); this lock only keeps a student request
// and a sweep pass in the same process from interleaving mid-transition.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionLocks creates the shared per-session lock table. The session
// and grading services must share one instance.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for one session, creating it on first use.
// Entries are never reclaimed; the table is bounded by sessions touched
// since process start.
func (l *SessionLocks) Lock(examID uuid.UUID, studentID int) func() {
	key := fmt.Sprintf("%s:%d", examID, studentID)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
