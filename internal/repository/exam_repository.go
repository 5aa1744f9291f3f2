package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, subject_id, paper_id, teacher_id, exam_type,
	start_time, end_time, duration_minutes, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.SubjectID, &e.PaperID, &e.TeacherID,
		&e.Type, &e.StartTime, &e.EndTime, &e.DurationMinutes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, examID))
}

// ListEndingBetween retrieves exams whose end boundary falls in (from, to].
// The sweep scans this window every tick to finalize leftover sessions.
func (r *ExamRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE end_time > $1 AND end_time <= $2
		 ORDER BY end_time`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListLateStart retrieves exams that opened at or before startedBefore and
// are still worth sweeping (end boundary at or after relevantAfter).
func (r *ExamRepository) ListLateStart(ctx context.Context, startedBefore, relevantAfter time.Time) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE start_time <= $1 AND end_time >= $2
		 ORDER BY start_time`, startedBefore, relevantAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
