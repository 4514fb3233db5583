package repository

import (
	"context"

	"github.com/examly/examly-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubjectRepository handles subject data access.
type SubjectRepository struct {
	pool *pgxpool.Pool
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(pool *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{pool: pool}
}

// List retrieves all subjects ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]model.Subject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM subjects ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// Create inserts a subject and fills the generated id.
func (r *SubjectRepository) Create(ctx context.Context, s *model.Subject) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO subjects (name) VALUES ($1) RETURNING id, created_at`,
		s.Name,
	).Scan(&s.ID, &s.CreatedAt)
}

// Update renames a subject.
func (r *SubjectRepository) Update(ctx context.Context, id int, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE subjects SET name = $1 WHERE id = $2`, name, id)
	return err
}

// Delete removes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	return err
}

// CountReferences returns how many questions and papers still use the subject.
func (r *SubjectRepository) CountReferences(ctx context.Context, id int) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM questions WHERE subject_id = $1)
		      + (SELECT COUNT(*) FROM test_papers WHERE subject_id = $1)`, id,
	).Scan(&n)
	return n, err
}
