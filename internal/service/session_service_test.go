package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/repository/memory"
)

const testStudentID = 7

type testEnv struct {
	store   *memory.Store
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	svc     *SessionService
	grading *GradingService
	agg     *ScoreAggregator

	exam      *model.Exam
	objective *model.Question // single choice, weight 60
	essay     *model.Question // short answer, weight 40

	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := memory.NewStore()
	base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	paperID := uuid.New()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Matematika XII",
		SubjectID:       1,
		PaperID:         paperID,
		TeacherID:       11,
		Type:            model.ExamTypeRegular,
		StartTime:       base,
		EndTime:         base.Add(2 * time.Hour),
		DurationMinutes: 60,
	}
	store.AddExam(exam)

	objective := model.Question{
		ID:       uuid.New(),
		PaperID:  paperID,
		Text:     "2 + 2 = ?",
		Type:     model.QuestionTypeSingleChoice,
		Weight:   60,
		OrderNum: 1,
		Options: []model.QuestionOption{
			{ID: uuid.New(), Text: "3"},
			{ID: uuid.New(), Text: "4", IsCorrect: true},
		},
	}
	essay := model.Question{
		ID:       uuid.New(),
		PaperID:  paperID,
		Text:     "Jelaskan teorema Pythagoras.",
		Type:     model.QuestionTypeShortAnswer,
		Weight:   40,
		OrderNum: 2,
	}
	store.AddQuestion(objective)
	store.AddQuestion(essay)

	store.AddStudent(model.Student{ID: testStudentID, Name: "Budi Santoso", NISN: "user7"})
	store.AddGrant(model.ExamGrant{
		ID:        uuid.New(),
		ExamID:    exam.ID,
		StudentID: testStudentID,
	})

	env := &testEnv{
		store:     store,
		mr:        mr,
		rdb:       rdb,
		exam:      &exam,
		objective: &objective,
		essay:     &essay,
		now:       base.Add(10 * time.Minute),
	}

	locks := NewSessionLocks()
	env.agg = NewScoreAggregator(store.Answers(), store.Scores(), store.Sessions(), 60)
	env.agg.now = env.clock
	env.svc = NewSessionService(
		store.Exams(), store.Sessions(), store.Answers(), store.Questions(), store.Grants(),
		env.agg, locks, rdb,
	)
	env.svc.now = env.clock
	env.grading = NewGradingService(
		store.Exams(), store.Sessions(), store.Answers(), store.Questions(), store.Results(),
		env.agg, locks,
	)
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) answer(t *testing.T, q *model.Question, raw string) *model.AnswerRecord {
	t.Helper()
	rec, err := e.svc.SubmitAnswer(context.Background(), e.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: q.ID,
		Answer:     raw,
	})
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	return rec
}

func TestStartSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, paper, remaining, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if sess.Status() != model.SessionStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", sess.Status())
	}
	if len(paper.Questions) != 2 {
		t.Fatalf("expected 2 questions in snapshot, got %d", len(paper.Questions))
	}
	// Personal deadline is 60 minutes; 10 minutes are gone.
	if remaining != 50*60 {
		t.Fatalf("expected 3000 remaining seconds, got %d", remaining)
	}

	// Re-entry keeps the original start time and deadline.
	env.now = env.now.Add(5 * time.Minute)
	again, _, remaining, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("re-entry failed: %v", err)
	}
	if !again.StartedAt.Equal(*sess.StartedAt) {
		t.Fatalf("re-entry moved the start time: %v != %v", again.StartedAt, sess.StartedAt)
	}
	if remaining != 45*60 {
		t.Fatalf("expected 2700 remaining seconds after re-entry, got %d", remaining)
	}
}

func TestStartSessionWindowAndGrant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.now = env.exam.StartTime.Add(-time.Minute)
	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); !errors.Is(err, ErrExamNotOpen) {
		t.Fatalf("expected ErrExamNotOpen, got %v", err)
	}

	env.now = env.exam.EndTime
	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); !errors.Is(err, ErrExamWindowClosed) {
		t.Fatalf("expected ErrExamWindowClosed, got %v", err)
	}

	env.now = env.exam.StartTime.Add(10 * time.Minute)
	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, 99); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for ungranted student, got %v", err)
	}
}

func TestSubmitAnswerValidatesBeforeWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Unknown question.
	_, err := env.svc.SubmitAnswer(ctx, env.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: uuid.New(),
		Answer:     "x",
	})
	if !errors.Is(err, ErrQuestionNotInPaper) {
		t.Fatalf("expected ErrQuestionNotInPaper, got %v", err)
	}

	// Malformed objective answer is rejected without touching the ledger.
	_, err = env.svc.SubmitAnswer(ctx, env.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: env.objective.ID,
		Answer:     "not-an-option-id",
	})
	if !errors.Is(err, ErrMalformedAnswer) {
		t.Fatalf("expected ErrMalformedAnswer, got %v", err)
	}
	records, _ := env.store.Answers().ListBySession(ctx, env.exam.ID, testStudentID)
	if len(records) != 0 {
		t.Fatalf("rejected answer must not be stored, found %d records", len(records))
	}

	// A valid objective answer is graded synchronously.
	rec := env.answer(t, env.objective, env.objective.Options[1].ID.String())
	if rec.Status != model.GradingStatusGraded || rec.Score != 60 {
		t.Fatalf("expected graded score 60, got %s/%v", rec.Status, rec.Score)
	}

	// A subjective answer stays ungraded.
	rec = env.answer(t, env.essay, "a^2 + b^2 = c^2")
	if rec.Status != model.GradingStatusUngraded || rec.Score != 0 {
		t.Fatalf("expected ungraded score 0, got %s/%v", rec.Status, rec.Score)
	}
}

func TestSubmitAnswerRejectedAfterWindowCloses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The sweep has not finalized the session yet, but the boundary has
	// passed: the ledger takes no more writes.
	env.now = env.exam.EndTime.Add(5 * time.Minute)
	_, err := env.svc.SubmitAnswer(ctx, env.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: env.objective.ID,
		Answer:     env.objective.Options[1].ID.String(),
	})
	if !errors.Is(err, ErrExamWindowClosed) {
		t.Fatalf("expected ErrExamWindowClosed after end boundary, got %v", err)
	}
	records, _ := env.store.Answers().ListBySession(ctx, env.exam.ID, testStudentID)
	if len(records) != 0 {
		t.Fatalf("late answer must not be stored, found %d records", len(records))
	}

	// The boundary itself is already outside the window.
	env.now = env.exam.EndTime
	_, err = env.svc.SubmitAnswer(ctx, env.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: env.objective.ID,
		Answer:     env.objective.Options[1].ID.String(),
	})
	if !errors.Is(err, ErrExamWindowClosed) {
		t.Fatalf("expected ErrExamWindowClosed at end boundary, got %v", err)
	}
}

func TestSubmitRequiresActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SubmitAnswer(ctx, env.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: env.objective.ID,
		Answer:     env.objective.Options[1].ID.String(),
	})
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive before start, got %v", err)
	}
	if _, _, err := env.svc.SubmitExam(ctx, env.exam.ID, testStudentID); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive before start, got %v", err)
	}
}

func TestSubmitExamRequiresCompleteness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	env.answer(t, env.objective, env.objective.Options[1].ID.String())

	_, _, err := env.svc.SubmitExam(ctx, env.exam.ID, testStudentID)
	var incomplete *IncompleteAnswersError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteAnswersError, got %v", err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != env.essay.ID {
		t.Fatalf("expected essay question reported missing, got %v", incomplete.Missing)
	}

	// The rejected submit left the session open.
	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if sess.SubmittedAt != nil {
		t.Fatalf("session must stay open after a rejected submit")
	}

	env.answer(t, env.essay, "jawaban")
	sess, _, err = env.svc.SubmitExam(ctx, env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if sess.Status() != model.SessionStatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", sess.Status())
	}

	// Submitting twice is rejected.
	if _, _, err := env.svc.SubmitExam(ctx, env.exam.ID, testStudentID); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	// So is answering after the fact.
	_, err = env.svc.SubmitAnswer(ctx, env.exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: env.objective.ID,
		Answer:     env.objective.Options[0].ID.String(),
	})
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted on late answer, got %v", err)
	}
}

func TestForceSubmitFillsGapsAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	env.answer(t, env.objective, env.objective.Options[1].ID.String())

	if err := env.svc.ForceSubmit(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("force submit failed: %v", err)
	}

	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if sess.Status() != model.SessionStatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", sess.Status())
	}

	records, _ := env.store.Answers().ListBySession(ctx, env.exam.ID, testStudentID)
	if len(records) != 2 {
		t.Fatalf("expected synthetic record for the gap, got %d records", len(records))
	}
	for _, rec := range records {
		if rec.QuestionID == env.essay.ID {
			if rec.Answer != "" || rec.Score != 0 || rec.Status != model.GradingStatusGraded {
				t.Fatalf("synthetic record must be empty, zero and graded: %+v", rec)
			}
		}
	}

	// Both records graded; the total of 60 is exactly at the threshold,
	// so no retake is needed.
	score, err := env.store.Scores().Get(ctx, env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("score missing: %v", err)
	}
	if score.TotalScore != 60 {
		t.Fatalf("expected total 60, got %v", score.TotalScore)
	}
	if sess.RetakeNeeded {
		t.Fatalf("total at the threshold must not need a retake")
	}

	submittedAt := *sess.SubmittedAt

	// A second sweep run is a no-op.
	env.now = env.now.Add(time.Minute)
	if err := env.svc.ForceSubmit(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("repeated force submit failed: %v", err)
	}
	sess, _ = env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if !sess.SubmittedAt.Equal(submittedAt) {
		t.Fatalf("repeated force submit moved submitted_at")
	}
}

func TestMarkAbsent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.MarkAbsent(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("mark absent failed: %v", err)
	}

	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if sess.Status() != model.SessionStatusAbsent {
		t.Fatalf("expected ABSENT, got %s", sess.Status())
	}
	if sess.StartedAt != nil {
		t.Fatalf("absent session must have no start time")
	}
	if !sess.RetakeNeeded {
		t.Fatalf("absent session must need a retake")
	}
	score, err := env.store.Scores().Get(ctx, env.exam.ID, testStudentID)
	if err != nil || score.TotalScore != 0 {
		t.Fatalf("expected zero score record, got %v/%v", score, err)
	}

	// Absence is a force-submit: submit time stamped, every question
	// covered by an empty zero record.
	if sess.SubmittedAt == nil {
		t.Fatalf("absent session must be force-submitted")
	}
	records, _ := env.store.Answers().ListBySession(ctx, env.exam.ID, testStudentID)
	if len(records) != 2 {
		t.Fatalf("expected zero records for every question, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Answer != "" || rec.Score != 0 || rec.Status != model.GradingStatusGraded {
			t.Fatalf("absent record must be empty, zero and graded: %+v", rec)
		}
	}

	// Idempotent re-run.
	if err := env.svc.MarkAbsent(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("repeated mark absent failed: %v", err)
	}

	// The student can no longer start.
	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); !errors.Is(err, ErrMarkedAbsent) {
		t.Fatalf("expected ErrMarkedAbsent, got %v", err)
	}
}

func TestMarkDisciplinaryOverridesScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// A perfect objective answer that disciplinary must wipe out.
	env.answer(t, env.objective, env.objective.Options[1].ID.String())

	// Only the exam's teacher may eject.
	if _, err := env.svc.MarkDisciplinary(ctx, env.exam.ID, testStudentID, 999, "menyontek"); !errors.Is(err, ErrNotExamTeacher) {
		t.Fatalf("expected ErrNotExamTeacher, got %v", err)
	}

	sess, err := env.svc.MarkDisciplinary(ctx, env.exam.ID, testStudentID, env.exam.TeacherID, "menyontek")
	if err != nil {
		t.Fatalf("disciplinary failed: %v", err)
	}
	if sess.Status() != model.SessionStatusDisciplinary {
		t.Fatalf("expected DISCIPLINARY, got %s", sess.Status())
	}

	stored, _ := env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if !stored.RetakeNeeded {
		t.Fatalf("disciplinary session must need a retake")
	}
	score, _ := env.store.Scores().Get(ctx, env.exam.ID, testStudentID)
	if score.TotalScore != 0 {
		t.Fatalf("disciplinary total must be forced to 0, got %v", score.TotalScore)
	}

	// Repeating the call is a no-op, and the student is locked out.
	if _, err := env.svc.MarkDisciplinary(ctx, env.exam.ID, testStudentID, env.exam.TeacherID, "lagi"); err != nil {
		t.Fatalf("repeated disciplinary failed: %v", err)
	}
	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); !errors.Is(err, ErrMarkedDisciplinary) {
		t.Fatalf("expected ErrMarkedDisciplinary, got %v", err)
	}
}

func TestMarkDisciplinaryRequiresStartedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.MarkDisciplinary(ctx, env.exam.ID, testStudentID, env.exam.TeacherID, "komentar"); !errors.Is(err, ErrSessionNotStarted) {
		t.Fatalf("expected ErrSessionNotStarted, got %v", err)
	}
}

func TestGetExamStateHealsStartTimeCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	key := config.CacheKey.SessionStartKey(env.exam.ID.String(), testStudentID)
	if !env.mr.Exists(key) {
		t.Fatalf("start must cache the start time")
	}

	// Losing the cache entry must not break the countdown.
	env.mr.Del(key)
	env.now = env.now.Add(20 * time.Minute)

	state, err := env.svc.GetExamState(ctx, env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if state.Status != model.SessionStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", state.Status)
	}
	if state.RemainingSeconds != 40*60 {
		t.Fatalf("expected 2400 remaining seconds, got %d", state.RemainingSeconds)
	}
	if !env.mr.Exists(key) {
		t.Fatalf("state must heal the cache entry")
	}
}

func TestGetExamStateNotStarted(t *testing.T) {
	env := newTestEnv(t)

	state, err := env.svc.GetExamState(context.Background(), env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if state.Status != model.SessionStatusNotStarted {
		t.Fatalf("expected NOT_STARTED, got %s", state.Status)
	}
	if state.RemainingSeconds != 0 {
		t.Fatalf("expected zero remaining seconds, got %d", state.RemainingSeconds)
	}
}

func TestRemainingTimeClampsToExamEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Start 30 minutes before the window closes: the personal deadline
	// would reach past the boundary, so the boundary wins.
	env.now = env.exam.EndTime.Add(-30 * time.Minute)
	_, _, remaining, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if remaining != 30*60 {
		t.Fatalf("expected 1800 remaining seconds, got %d", remaining)
	}
}

func TestMonitorEventPublishedOnSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	channel := config.CacheKey.ExamMonitorChannel(env.exam.ID.String())
	sub := env.rdb.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	env.answer(t, env.objective, env.objective.Options[1].ID.String())
	env.answer(t, env.essay, "jawaban")
	if _, _, err := env.svc.SubmitExam(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg == nil || msg.Payload == "" {
			t.Fatalf("expected monitor event payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no monitor event received")
	}
}
