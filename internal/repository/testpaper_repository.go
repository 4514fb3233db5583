package repository

import (
	"context"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestPaperRepository handles test paper data access.
type TestPaperRepository struct {
	pool *pgxpool.Pool
}

// NewTestPaperRepository creates a new TestPaperRepository.
func NewTestPaperRepository(pool *pgxpool.Pool) *TestPaperRepository {
	return &TestPaperRepository{pool: pool}
}

// Create inserts a paper with its question entries in a single transaction.
// TotalScore and QuestionCount are computed from the entries.
func (r *TestPaperRepository) Create(ctx context.Context, p *model.TestPaper, entries []model.PaperQuestion) error {
	p.TotalScore = 0
	for _, e := range entries {
		p.TotalScore += e.Score
	}
	p.QuestionCount = len(entries)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO test_papers (name, subject_id, author_id, total_score, passing_score, question_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.SubjectID, p.AuthorID, p.TotalScore, p.PassingScore, p.QuestionCount,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertPaperQuestions(ctx, tx, p.ID, entries); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a paper without its entries.
func (r *TestPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestPaper, error) {
	p := &model.TestPaper{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, subject_id, author_id, total_score, passing_score, question_count, created_at, updated_at
		 FROM test_papers
		 WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.SubjectID, &p.AuthorID, &p.TotalScore, &p.PassingScore, &p.QuestionCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces a paper's fields and its full entry set.
func (r *TestPaperRepository) Update(ctx context.Context, p *model.TestPaper, entries []model.PaperQuestion) error {
	p.TotalScore = 0
	for _, e := range entries {
		p.TotalScore += e.Score
	}
	p.QuestionCount = len(entries)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE test_papers
		 SET name = $1, subject_id = $2, total_score = $3, passing_score = $4,
		     question_count = $5, updated_at = NOW()
		 WHERE id = $6`,
		p.Name, p.SubjectID, p.TotalScore, p.PassingScore, p.QuestionCount, p.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err := tx.Exec(ctx, `DELETE FROM paper_questions WHERE paper_id = $1`, p.ID); err != nil {
		return err
	}
	if err := insertPaperQuestions(ctx, tx, p.ID, entries); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a paper. Entries cascade at the database level.
func (r *TestPaperRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM test_papers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountExamReferences returns how many examinations use the paper.
func (r *TestPaperRepository) CountExamReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM examinations WHERE paper_id = $1`, id,
	).Scan(&n)
	return n, err
}

// ListByAuthor retrieves a teacher's papers, newest first.
func (r *TestPaperRepository) ListByAuthor(ctx context.Context, authorID, limit, offset int) ([]model.TestPaper, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_papers WHERE author_id = $1`, authorID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, subject_id, author_id, total_score, passing_score, question_count, created_at, updated_at
		 FROM test_papers
		 WHERE author_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, authorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var papers []model.TestPaper
	for rows.Next() {
		var p model.TestPaper
		if err := rows.Scan(&p.ID, &p.Name, &p.SubjectID, &p.AuthorID, &p.TotalScore, &p.PassingScore, &p.QuestionCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		papers = append(papers, p)
	}
	return papers, total, rows.Err()
}

// ListQuestions retrieves a paper's entries with full questions and options,
// ordered by position.
func (r *TestPaperRepository) ListQuestions(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestionDetail, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.subject_id, q.author_id, q.type, q.prompt, q.created_at, q.updated_at,
		        pq.score, pq.position
		 FROM paper_questions pq
		 JOIN questions q ON q.id = pq.question_id
		 WHERE pq.paper_id = $1
		 ORDER BY pq.position ASC`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []model.PaperQuestionDetail
	byID := make(map[uuid.UUID]int)
	var ids []uuid.UUID
	for rows.Next() {
		var d model.PaperQuestionDetail
		if err := rows.Scan(&d.Question.ID, &d.Question.SubjectID, &d.Question.AuthorID,
			&d.Question.Type, &d.Question.Prompt, &d.Question.CreatedAt, &d.Question.UpdatedAt,
			&d.Score, &d.Position); err != nil {
			return nil, err
		}
		byID[d.Question.ID] = len(details)
		ids = append(ids, d.Question.ID)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return details, nil
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
		if idx, ok := byID[questionID]; ok {
			details[idx].Question.Options = append(details[idx].Question.Options, opt)
		}
	}
	return details, optRows.Err()
}

func insertPaperQuestions(ctx context.Context, tx pgx.Tx, paperID uuid.UUID, entries []model.PaperQuestion) error {
	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO paper_questions (paper_id, question_id, score, position)
			 VALUES ($1, $2, $3, $4)`,
			paperID, e.QuestionID, e.Score, e.Position)
		if err != nil {
			return err
		}
	}
	return nil
}
