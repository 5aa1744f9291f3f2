package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// GrantRepository handles exam grant data access.
type GrantRepository struct {
	pool *pgxpool.Pool
}

// NewGrantRepository creates a new GrantRepository.
func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{pool: pool}
}

// Get retrieves the grant of one student for one exam.
func (r *GrantRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamGrant, error) {
	g := &model.ExamGrant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, expires_at, created_at
		 FROM exam_grants
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&g.ID, &g.ExamID, &g.StudentID, &g.ExpiresAt, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListAbsentCandidates retrieves students holding a non-expiring grant for
// the exam who have no session row at all. Grants with expires_at set
// belong to a different sitting and are exempt from the late-start pass.
func (r *GrantRepository) ListAbsentCandidates(ctx context.Context, examID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.student_id
		 FROM exam_grants g
		 LEFT JOIN exam_sessions es
		   ON es.exam_id = g.exam_id AND es.student_id = g.student_id
		 WHERE g.exam_id = $1
		   AND g.expires_at IS NULL
		   AND es.id IS NULL
		 ORDER BY g.student_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var studentIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		studentIDs = append(studentIDs, id)
	}
	return studentIDs, rows.Err()
}
