package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// SessionRepository handles exam session data access. The conditional
// guards live here: submitted_at is only ever set where it is still NULL,
// so concurrent finalizers settle on a single winner at the database.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByExamAndStudent retrieves a session for a specific exam-student combination.
func (r *SessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, submitted_at, absent, disciplinary, retake_needed, COALESCE(teacher_comment, '')
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.SubmittedAt,
		&s.Absent, &s.Disciplinary, &s.RetakeNeeded, &s.TeacherComment)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session row. On a concurrent duplicate the insert
// hits the conflict target, RETURNING yields no row, and the caller sees
// pgx.ErrNoRows.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, exam_id, student_id, started_at, absent)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`,
		s.ID, s.ExamID, s.StudentID, s.StartedAt, s.Absent,
	).Scan(&s.ID)
}

// MarkSubmitted sets submitted_at once. The guard makes the write
// first-wins: false means another writer already finalized the session.
func (r *SessionRepository) MarkSubmitted(ctx context.Context, examID uuid.UUID, studentID int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET submitted_at = $1
		 WHERE exam_id = $2 AND student_id = $3 AND submitted_at IS NULL`,
		at, examID, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDisciplinary flags a session disciplinary with the teacher's comment.
func (r *SessionRepository) MarkDisciplinary(ctx context.Context, examID uuid.UUID, studentID int, comment string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET disciplinary = TRUE, teacher_comment = $1
		 WHERE exam_id = $2 AND student_id = $3`,
		comment, examID, studentID)
	return err
}

// SetRetakeNeeded writes the retake flag in either direction.
func (r *SessionRepository) SetRetakeNeeded(ctx context.Context, examID uuid.UUID, studentID int, needed bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET retake_needed = $1
		 WHERE exam_id = $2 AND student_id = $3`,
		needed, examID, studentID)
	return err
}

// ListInProgressByExam retrieves the sessions still open on an exam:
// started, not submitted, not flagged terminal.
func (r *SessionRepository) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, started_at, submitted_at, absent, disciplinary, retake_needed, COALESCE(teacher_comment, '')
		 FROM exam_sessions
		 WHERE exam_id = $1
		   AND started_at IS NOT NULL
		   AND submitted_at IS NULL
		   AND NOT absent AND NOT disciplinary`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.SubmittedAt,
			&s.Absent, &s.Disciplinary, &s.RetakeNeeded, &s.TeacherComment); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
