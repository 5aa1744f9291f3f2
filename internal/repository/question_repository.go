package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examflow-backend/internal/model"
)

// QuestionRepository handles paper question data access. Question and
// option rows are immutable while any session references them, so these
// reads never see half-updated grading data.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByID retrieves one question with its options.
func (r *QuestionRepository) GetByID(ctx context.Context, questionID uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, paper_id, question_text, question_type, weight, order_num
		 FROM questions
		 WHERE id = $1`, questionID,
	).Scan(&q.ID, &q.PaperID, &q.Text, &q.Type, &q.Weight, &q.OrderNum)
	if err != nil {
		return nil, err
	}

	if err := r.attachOptions(ctx, []*model.Question{q}); err != nil {
		return nil, err
	}
	return q, nil
}

// ListByPaper retrieves a paper's questions in presentation order, with
// their options.
func (r *QuestionRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, paper_id, question_text, question_type, weight, order_num
		 FROM questions
		 WHERE paper_id = $1
		 ORDER BY order_num`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.PaperID, &q.Text, &q.Type, &q.Weight, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*model.Question, len(questions))
	for i := range questions {
		refs[i] = &questions[i]
	}
	if err := r.attachOptions(ctx, refs); err != nil {
		return nil, err
	}
	return questions, nil
}

// attachOptions loads the options of all given questions in one query.
func (r *QuestionRepository) attachOptions(ctx context.Context, questions []*model.Question) error {
	if len(questions) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*model.Question, len(questions))
	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
		ids = append(ids, q.ID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, id, option_text, is_correct
		 FROM question_options
		 WHERE question_id = ANY($1)
		 ORDER BY question_id, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			questionID uuid.UUID
			opt        model.QuestionOption
		)
		if err := rows.Scan(&questionID, &opt.ID, &opt.Text, &opt.IsCorrect); err != nil {
			return err
		}
		if q, ok := byID[questionID]; ok {
			q.Options = append(q.Options, opt)
		}
	}
	return rows.Err()
}
