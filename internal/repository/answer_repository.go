package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// AnswerRepository handles answer ledger data access. The ledger holds at
// most one record per (exam, student, question); Upsert replaces, while
// InsertMissing only fills gaps so concurrent force-submits never clobber
// a real answer.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// GetByID retrieves an answer record by ID.
func (r *AnswerRepository) GetByID(ctx context.Context, recordID uuid.UUID) (*model.AnswerRecord, error) {
	a := &model.AnswerRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, question_id, answer, score, status, updated_at
		 FROM answer_records
		 WHERE id = $1`, recordID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.QuestionID, &a.Answer, &a.Score, &a.Status, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListBySession retrieves all answer records of one session.
func (r *AnswerRepository) ListBySession(ctx context.Context, examID uuid.UUID, studentID int) ([]model.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, question_id, answer, score, status, updated_at
		 FROM answer_records
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AnswerRecord
	for rows.Next() {
		var a model.AnswerRecord
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.QuestionID,
			&a.Answer, &a.Score, &a.Status, &a.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// Upsert creates or replaces the record for (exam, student, question).
// A re-answer overwrites the previous answer, score and grading status.
func (r *AnswerRepository) Upsert(ctx context.Context, rec *model.AnswerRecord) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO answer_records (id, exam_id, student_id, question_id, answer, score, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (exam_id, student_id, question_id)
		 DO UPDATE SET answer = EXCLUDED.answer, score = EXCLUDED.score,
		               status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		rec.ID, rec.ExamID, rec.StudentID, rec.QuestionID,
		rec.Answer, rec.Score, rec.Status, rec.UpdatedAt,
	).Scan(&rec.ID)
}

// InsertMissing adds records only where none exist yet. Conflicts are
// dropped silently, so two concurrent fillers are commutative.
func (r *AnswerRepository) InsertMissing(ctx context.Context, recs []model.AnswerRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(
			`INSERT INTO answer_records (id, exam_id, student_id, question_id, answer, score, status, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (exam_id, student_id, question_id) DO NOTHING`,
			rec.ID, rec.ExamID, rec.StudentID, rec.QuestionID,
			rec.Answer, rec.Score, rec.Status, rec.UpdatedAt)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// UpdateScore writes a score and grading status on one record.
func (r *AnswerRepository) UpdateScore(ctx context.Context, recordID uuid.UUID, score float64, status model.GradingStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE answer_records
		 SET score = $1, status = $2, updated_at = NOW()
		 WHERE id = $3`,
		score, status, recordID)
	return err
}
