package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examflow-backend/internal/model"
)

// started submits a complete attempt: objective correct, essay ungraded.
func started(t *testing.T, env *testEnv) *model.AnswerRecord {
	t.Helper()
	ctx := context.Background()
	if _, _, _, err := env.svc.StartSession(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	env.answer(t, env.objective, env.objective.Options[1].ID.String())
	essayRec := env.answer(t, env.essay, "jawaban panjang")
	if _, _, err := env.svc.SubmitExam(ctx, env.exam.ID, testStudentID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return essayRec
}

func TestGradeAnswerCompletesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	essayRec := started(t, env)

	// Until the essay is graded, the retake flag must not be evaluated.
	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if sess.RetakeNeeded {
		t.Fatalf("retake must not be flagged while grading is pending")
	}

	rec, err := env.grading.GradeAnswer(ctx, essayRec.ID, env.exam.TeacherID, 25)
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if rec.Status != model.GradingStatusGraded || rec.Score != 25 {
		t.Fatalf("expected graded score 25, got %s/%v", rec.Status, rec.Score)
	}

	// Total 85 clears the threshold of 60.
	score, _ := env.store.Scores().Get(ctx, env.exam.ID, testStudentID)
	if score.TotalScore != 85 {
		t.Fatalf("expected total 85, got %v", score.TotalScore)
	}
	sess, _ = env.store.Sessions().GetByExamAndStudent(ctx, env.exam.ID, testStudentID)
	if sess.RetakeNeeded {
		t.Fatalf("total 85 must not need a retake")
	}
}

func TestRetakeFlipsOnRegrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A single essay carrying the full weight, so one regrade can move the
	// total across the threshold in either direction.
	paperID := uuid.New()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Bahasa Indonesia XII",
		SubjectID:       2,
		PaperID:         paperID,
		TeacherID:       env.exam.TeacherID,
		Type:            model.ExamTypeRegular,
		StartTime:       env.exam.StartTime,
		EndTime:         env.exam.EndTime,
		DurationMinutes: 60,
	}
	env.store.AddExam(exam)
	essay := model.Question{
		ID:      uuid.New(),
		PaperID: paperID,
		Text:    "Tulis esai tentang lingkungan.",
		Type:    model.QuestionTypeShortAnswer,
		Weight:  100,
	}
	env.store.AddQuestion(essay)
	env.store.AddGrant(model.ExamGrant{ID: uuid.New(), ExamID: exam.ID, StudentID: testStudentID})

	if _, _, _, err := env.svc.StartSession(ctx, exam.ID, testStudentID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	rec, err := env.svc.SubmitAnswer(ctx, exam.ID, testStudentID, model.SubmitAnswerRequest{
		QuestionID: essay.ID,
		Answer:     "esai",
	})
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if _, _, err := env.svc.SubmitExam(ctx, exam.ID, testStudentID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Just below the threshold flags the retake.
	if _, err := env.grading.GradeAnswer(ctx, rec.ID, exam.TeacherID, 59.5); err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	sess, _ := env.store.Sessions().GetByExamAndStudent(ctx, exam.ID, testStudentID)
	if !sess.RetakeNeeded {
		t.Fatalf("total 59.5 must flag a retake")
	}

	// Exactly at the threshold clears it again.
	if _, err := env.grading.GradeAnswer(ctx, rec.ID, exam.TeacherID, 60); err != nil {
		t.Fatalf("regrade failed: %v", err)
	}
	sess, _ = env.store.Sessions().GetByExamAndStudent(ctx, exam.ID, testStudentID)
	if sess.RetakeNeeded {
		t.Fatalf("total 60 sits on the threshold and must pass")
	}
}

func TestGradeAnswerGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	essayRec := started(t, env)

	// Unknown record.
	if _, err := env.grading.GradeAnswer(ctx, uuid.New(), env.exam.TeacherID, 10); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}

	// Wrong teacher.
	if _, err := env.grading.GradeAnswer(ctx, essayRec.ID, 999, 10); !errors.Is(err, ErrNotExamTeacher) {
		t.Fatalf("expected ErrNotExamTeacher, got %v", err)
	}

	// Out of range: above the question weight and below zero.
	if _, err := env.grading.GradeAnswer(ctx, essayRec.ID, env.exam.TeacherID, 40.5); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("expected ErrScoreOutOfRange above weight, got %v", err)
	}
	if _, err := env.grading.GradeAnswer(ctx, essayRec.ID, env.exam.TeacherID, -1); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("expected ErrScoreOutOfRange below zero, got %v", err)
	}

	// Objective records are closed to manual grading.
	records, _ := env.store.Answers().ListBySession(ctx, env.exam.ID, testStudentID)
	for _, rec := range records {
		if rec.QuestionID == env.objective.ID {
			if _, err := env.grading.GradeAnswer(ctx, rec.ID, env.exam.TeacherID, 10); !errors.Is(err, ErrAnswerNotSubjective) {
				t.Fatalf("expected ErrAnswerNotSubjective, got %v", err)
			}
		}
	}
}

func TestListResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	started(t, env)

	if _, err := env.grading.ListResults(ctx, env.exam.ID, 999, 0, 0); !errors.Is(err, ErrNotExamTeacher) {
		t.Fatalf("expected ErrNotExamTeacher, got %v", err)
	}

	results, err := env.grading.ListResults(ctx, env.exam.ID, env.exam.TeacherID, 0, 0)
	if err != nil {
		t.Fatalf("list results failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result row, got %d", len(results))
	}
	row := results[0]
	if row.StudentID != testStudentID || row.StudentName != "Budi Santoso" {
		t.Fatalf("unexpected student in result row: %+v", row)
	}
	if row.Status != model.SessionStatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", row.Status)
	}
	if row.FullyGraded {
		t.Fatalf("essay is ungraded, row must not be fully graded")
	}
}
