package repository

import (
	"context"
	"fmt"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Create inserts a question with its options in a single transaction.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO questions (subject_id, author_id, type, prompt)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		q.SubjectID, q.AuthorID, q.Type, q.Prompt,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertOptions(ctx, tx, q.ID, q.Options); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a question with its options.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject_id, author_id, type, prompt, created_at, updated_at
		 FROM questions
		 WHERE id = $1`, id,
	).Scan(&q.ID, &q.SubjectID, &q.AuthorID, &q.Type, &q.Prompt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}

	opts, err := r.listOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Options = opts
	return q, nil
}

// Update replaces a question's fields and its full option set.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE questions
		 SET subject_id = $1, type = $2, prompt = $3, updated_at = NOW()
		 WHERE id = $4`,
		q.SubjectID, q.Type, q.Prompt, q.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err := tx.Exec(ctx, `DELETE FROM options WHERE question_id = $1`, q.ID); err != nil {
		return err
	}
	if err := insertOptions(ctx, tx, q.ID, q.Options); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a question. Options cascade at the database level.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountPaperReferences returns how many test papers include the question.
func (r *QuestionRepository) CountPaperReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM paper_questions WHERE question_id = $1`, id,
	).Scan(&n)
	return n, err
}

// List retrieves a teacher's questions with optional subject/search filters.
// Options are not loaded in list mode.
func (r *QuestionRepository) List(ctx context.Context, authorID, subjectID int, search string, limit, offset int) ([]model.Question, int64, error) {
	baseQuery := `FROM questions WHERE author_id = $1`
	args := []any{authorID}

	if subjectID > 0 {
		args = append(args, subjectID)
		baseQuery += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		baseQuery += fmt.Sprintf(" AND prompt ILIKE $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, subject_id, author_id, type, prompt, created_at, updated_at ` +
		baseQuery + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.AuthorID, &q.Type, &q.Prompt, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// ListByIDs retrieves the given questions with their options, keyed by id.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Question, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*model.Question{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, subject_id, author_id, type, prompt, created_at, updated_at
		 FROM questions
		 WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make(map[uuid.UUID]*model.Question, len(ids))
	for rows.Next() {
		q := &model.Question{}
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.AuthorID, &q.Type, &q.Prompt, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT id, question_id, text, is_correct, position
		 FROM options
		 WHERE question_id = ANY($1)
		 ORDER BY position ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var opt model.Option
		var questionID uuid.UUID
		if err := optRows.Scan(&opt.ID, &questionID, &opt.Text, &opt.IsCorrect, &opt.Position); err != nil {
			return nil, err
		}
		if q, ok := questions[questionID]; ok {
			q.Options = append(q.Options, opt)
		}
	}
	return questions, optRows.Err()
}

func (r *QuestionRepository) listOptions(ctx context.Context, questionID uuid.UUID) ([]model.Option, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, text, is_correct, position
		 FROM options
		 WHERE question_id = $1
		 ORDER BY position ASC`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []model.Option
	for rows.Next() {
		var opt model.Option
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.IsCorrect, &opt.Position); err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, rows.Err()
}

func insertOptions(ctx context.Context, tx pgx.Tx, questionID uuid.UUID, opts []model.Option) error {
	for i := range opts {
		err := tx.QueryRow(ctx,
			`INSERT INTO options (question_id, text, is_correct, position)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			questionID, opts[i].Text, opts[i].IsCorrect, opts[i].Position,
		).Scan(&opts[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}
