package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// TeacherRepository handles teacher data access.
type TeacherRepository struct {
	pool *pgxpool.Pool
}

// NewTeacherRepository creates a new TeacherRepository.
func NewTeacherRepository(pool *pgxpool.Pool) *TeacherRepository {
	return &TeacherRepository{pool: pool}
}

// GetByEmail retrieves a teacher by email for login.
func (r *TeacherRepository) GetByEmail(ctx context.Context, email string) (*model.Teacher, error) {
	t := &model.Teacher{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, subject_id, password_hash
		 FROM teachers
		 WHERE email = $1`, email,
	).Scan(&t.ID, &t.Name, &t.Email, &t.SubjectID, &t.PasswordHash)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a teacher by ID.
func (r *TeacherRepository) GetByID(ctx context.Context, id int) (*model.Teacher, error) {
	t := &model.Teacher{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, subject_id, password_hash
		 FROM teachers
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Email, &t.SubjectID, &t.PasswordHash)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new teacher, returning the generated ID.
func (r *TeacherRepository) Create(ctx context.Context, t *model.Teacher) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO teachers (name, email, subject_id, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		t.Name, t.Email, t.SubjectID, t.PasswordHash,
	).Scan(&t.ID)
}
