package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/repository/memory"
	"github.com/stemsi/examflow-backend/internal/service"
)

type sweepEnv struct {
	store *memory.Store
	rdb   *redis.Client
	w     *SweepWorker
	now   time.Time
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := memory.NewStore()
	locks := service.NewSessionLocks()
	agg := service.NewScoreAggregator(store.Answers(), store.Scores(), store.Sessions(), 60)
	svc := service.NewSessionService(
		store.Exams(), store.Sessions(), store.Answers(), store.Questions(), store.Grants(),
		agg, locks, rdb,
	)
	audit := service.NewAuditRecorder(rdb)

	env := &sweepEnv{
		store: store,
		rdb:   rdb,
		now:   time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
	}
	env.w = NewSweepWorker(
		svc, store.Exams(), store.Sessions(), store.Grants(), audit, zerolog.Nop(),
		time.Minute, 2*time.Minute, 10*time.Minute,
	)
	env.w.now = func() time.Time { return env.now }
	return env
}

// addExam seeds an exam with one question so force-submitted sessions get a
// synthetic record to aggregate.
func (e *sweepEnv) addExam(t *testing.T, start, end time.Time, durationMinutes int) *model.Exam {
	t.Helper()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Sapu Ujian",
		SubjectID:       1,
		PaperID:         uuid.New(),
		TeacherID:       1,
		Type:            model.ExamTypeRegular,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes,
	}
	e.store.AddExam(exam)
	e.store.AddQuestion(model.Question{
		ID:      uuid.New(),
		PaperID: exam.PaperID,
		Text:    "Soal",
		Type:    model.QuestionTypeShortAnswer,
		Weight:  100,
	})
	return &exam
}

func (e *sweepEnv) addSession(t *testing.T, examID uuid.UUID, studentID int, startedAt time.Time) {
	t.Helper()
	sess := &model.ExamSession{
		ID:        uuid.New(),
		ExamID:    examID,
		StudentID: studentID,
		StartedAt: &startedAt,
	}
	if err := e.store.Sessions().Create(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func (e *sweepEnv) status(t *testing.T, examID uuid.UUID, studentID int) model.SessionStatus {
	t.Helper()
	sess, err := e.store.Sessions().GetByExamAndStudent(context.Background(), examID, studentID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess.Status()
}

func (e *sweepEnv) auditLen(t *testing.T) int64 {
	t.Helper()
	n, err := e.rdb.LLen(context.Background(), config.WorkerKey.AuditQueue).Result()
	if err != nil {
		t.Fatalf("audit queue length: %v", err)
	}
	return n
}

func TestSweepFinalizesEndedExam(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	// Ended one minute ago, inside the lookback window.
	exam := env.addExam(t, env.now.Add(-2*time.Hour), env.now.Add(-time.Minute), 120)
	env.addSession(t, exam.ID, 1, env.now.Add(-90*time.Minute))

	env.w.RunOnce(ctx)

	if got := env.status(t, exam.ID, 1); got != model.SessionStatusSubmitted {
		t.Fatalf("expected SUBMITTED after sweep, got %s", got)
	}
	// The unanswered question got a synthetic graded record and the
	// zero total flagged a retake.
	records, _ := env.store.Answers().ListBySession(ctx, exam.ID, 1)
	if len(records) != 1 || records[0].Status != model.GradingStatusGraded {
		t.Fatalf("expected synthetic graded record, got %+v", records)
	}
	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, exam.ID, 1)
	if !sess.RetakeNeeded {
		t.Fatalf("zero total must flag a retake")
	}
	if got := env.auditLen(t); got != 1 {
		t.Fatalf("expected 1 audit entry, got %d", got)
	}

	// A second run finds nothing in progress and records nothing new.
	env.w.RunOnce(ctx)
	if got := env.auditLen(t); got != 1 {
		t.Fatalf("repeated sweep must be a no-op, audit grew to %d", got)
	}
}

func TestSweepEnforcesPersonalDeadline(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	// Still running for another hour; the paper allows 20 minutes.
	exam := env.addExam(t, env.now.Add(-30*time.Minute), env.now.Add(time.Hour), 20)
	env.addSession(t, exam.ID, 1, env.now.Add(-25*time.Minute)) // past deadline
	env.addSession(t, exam.ID, 2, env.now.Add(-5*time.Minute))  // still inside

	env.w.RunOnce(ctx)

	if got := env.status(t, exam.ID, 1); got != model.SessionStatusSubmitted {
		t.Fatalf("late session must be force-submitted, got %s", got)
	}
	if got := env.status(t, exam.ID, 2); got != model.SessionStatusInProgress {
		t.Fatalf("session inside its deadline must be untouched, got %s", got)
	}
}

func TestSweepMarksAbsentAfterGrace(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	// Open for 15 minutes, past the 10 minute grace.
	exam := env.addExam(t, env.now.Add(-15*time.Minute), env.now.Add(time.Hour), 60)

	expiry := env.now.Add(-time.Hour)
	env.store.AddGrant(model.ExamGrant{ID: uuid.New(), ExamID: exam.ID, StudentID: 1})
	env.store.AddGrant(model.ExamGrant{ID: uuid.New(), ExamID: exam.ID, StudentID: 2})
	env.store.AddGrant(model.ExamGrant{ID: uuid.New(), ExamID: exam.ID, StudentID: 3, ExpiresAt: &expiry})
	env.addSession(t, exam.ID, 2, env.now.Add(-5*time.Minute))

	env.w.RunOnce(ctx)

	// Student 1 never started: absent with a zero score and the retake flag.
	if got := env.status(t, exam.ID, 1); got != model.SessionStatusAbsent {
		t.Fatalf("expected ABSENT, got %s", got)
	}
	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, exam.ID, 1)
	if !sess.RetakeNeeded {
		t.Fatalf("absent student must need a retake")
	}
	score, err := env.store.Scores().Get(ctx, exam.ID, 1)
	if err != nil || score.TotalScore != 0 {
		t.Fatalf("expected zero score record, got %v/%v", score, err)
	}
	// The absent attempt is force-submitted with all-zero answers.
	if sess.SubmittedAt == nil {
		t.Fatalf("absent session must carry a submit time")
	}
	records, _ := env.store.Answers().ListBySession(ctx, exam.ID, 1)
	if len(records) != 1 || records[0].Answer != "" || records[0].Score != 0 || records[0].Status != model.GradingStatusGraded {
		t.Fatalf("expected one empty graded zero record, got %+v", records)
	}

	// Student 2 is working and stays untouched.
	if got := env.status(t, exam.ID, 2); got != model.SessionStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got)
	}

	// Student 3 holds an expiring grant for another sitting: skipped.
	if _, err := env.store.Sessions().GetByExamAndStudent(ctx, exam.ID, 3); err == nil {
		t.Fatalf("expiring grant holder must not get a session")
	}

	// Idempotent re-run.
	before := env.auditLen(t)
	env.w.RunOnce(ctx)
	if got := env.auditLen(t); got != before {
		t.Fatalf("repeated sweep must be a no-op, audit grew from %d to %d", before, got)
	}
}

func TestSweepSkipsExamInsideGrace(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	// Open for only 5 minutes: no absence pass yet.
	exam := env.addExam(t, env.now.Add(-5*time.Minute), env.now.Add(time.Hour), 60)
	env.store.AddGrant(model.ExamGrant{ID: uuid.New(), ExamID: exam.ID, StudentID: 1})

	env.w.RunOnce(ctx)

	if _, err := env.store.Sessions().GetByExamAndStudent(ctx, exam.ID, 1); err == nil {
		t.Fatalf("student inside the grace period must not be marked absent")
	}
}
