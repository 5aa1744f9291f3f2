package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByNISN retrieves a student by their NISN for login.
func (r *StudentRepository) GetByNISN(ctx context.Context, nisn string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, nisn, password_hash
		 FROM students
		 WHERE nisn = $1`, nisn,
	).Scan(&s.ID, &s.Name, &s.NISN, &s.PasswordHash)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, nisn, password_hash
		 FROM students
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.NISN, &s.PasswordHash)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new student, returning the generated ID.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (name, nisn, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		s.Name, s.NISN, s.PasswordHash,
	).Scan(&s.ID)
}
