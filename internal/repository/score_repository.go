package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// ScoreRepository handles the per-session aggregate score records and the
// teacher-facing result listing built on top of them.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Get retrieves the score record of one session.
func (r *ScoreRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ScoreRecord, error) {
	s := &model.ScoreRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, total_score, upload_time
		 FROM score_records
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.TotalScore, &s.UploadTime)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Ensure creates a zero score record if none exists yet.
func (r *ScoreRepository) Ensure(ctx context.Context, examID uuid.UUID, studentID int, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO score_records (id, exam_id, student_id, total_score, upload_time)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		uuid.New(), examID, studentID, at)
	return err
}

// SetTotal writes the aggregate total of one session.
func (r *ScoreRepository) SetTotal(ctx context.Context, examID uuid.UUID, studentID int, total float64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE score_records
		 SET total_score = $1, upload_time = $2
		 WHERE exam_id = $3 AND student_id = $4`,
		total, at, examID, studentID)
	return err
}

// ListByExam assembles the result rows of an exam: one per session, with
// the student name, the aggregate total and whether every answer record
// has been graded. limit <= 0 returns all rows.
func (r *ScoreRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResult, error) {
	query := `SELECT s.id, s.name,
	        es.started_at, es.submitted_at, es.absent, es.disciplinary, es.retake_needed,
	        COALESCE(sr.total_score, 0),
	        COALESCE(BOOL_AND(ar.status = 'GRADED'), TRUE)
	 FROM exam_sessions es
	 JOIN students s ON s.id = es.student_id
	 LEFT JOIN score_records sr ON sr.exam_id = es.exam_id AND sr.student_id = es.student_id
	 LEFT JOIN answer_records ar ON ar.exam_id = es.exam_id AND ar.student_id = es.student_id
	 WHERE es.exam_id = $1
	 GROUP BY s.id, s.name, es.started_at, es.submitted_at, es.absent, es.disciplinary, es.retake_needed, sr.total_score
	 ORDER BY s.name, s.id`

	args := []any{examID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ExamResult
	for rows.Next() {
		var (
			res  model.ExamResult
			sess model.ExamSession
		)
		if err := rows.Scan(&res.StudentID, &res.StudentName,
			&sess.StartedAt, &sess.SubmittedAt, &sess.Absent, &sess.Disciplinary, &sess.RetakeNeeded,
			&res.TotalScore, &res.FullyGraded); err != nil {
			return nil, err
		}
		res.Status = sess.Status()
		res.RetakeNeeded = sess.RetakeNeeded
		res.SubmittedAt = sess.SubmittedAt
		results = append(results, res)
	}
	return results, rows.Err()
}
