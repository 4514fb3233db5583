package repository

import (
	"context"
	"time"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles examination and enrollment data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// Create inserts a draft examination.
func (r *ExamRepository) Create(ctx context.Context, e *model.Examination) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO examinations (name, paper_id, subject_id, author_id, start_time, end_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		e.Name, e.PaperID, e.SubjectID, e.AuthorID, e.StartTime, e.EndTime, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an examination.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Examination, error) {
	e := &model.Examination{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, paper_id, subject_id, author_id, start_time, end_time, status, created_at, updated_at
		 FROM examinations
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.PaperID, &e.SubjectID, &e.AuthorID,
		&e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Update replaces the schedulable fields of a draft examination.
func (r *ExamRepository) Update(ctx context.Context, e *model.Examination) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE examinations
		 SET name = $1, paper_id = $2, subject_id = $3, start_time = $4, end_time = $5, updated_at = NOW()
		 WHERE id = $6`,
		e.Name, e.PaperID, e.SubjectID, e.StartTime, e.EndTime, e.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus moves an examination through its lifecycle.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE examinations SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an examination and its enrollments.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM examinations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByAuthor retrieves a teacher's examinations, newest first.
func (r *ExamRepository) ListByAuthor(ctx context.Context, authorID, limit, offset int) ([]model.Examination, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM examinations WHERE author_id = $1`, authorID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, paper_id, subject_id, author_id, start_time, end_time, status, created_at, updated_at
		 FROM examinations
		 WHERE author_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, authorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Examination
	for rows.Next() {
		var e model.Examination
		if err := rows.Scan(&e.ID, &e.Name, &e.PaperID, &e.SubjectID, &e.AuthorID,
			&e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished retrieves all published examinations. Used for cache prewarm.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Examination, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, paper_id, subject_id, author_id, start_time, end_time, status, created_at, updated_at
		 FROM examinations
		 WHERE status = 'published'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Examination
	for rows.Next() {
		var e model.Examination
		if err := rows.Scan(&e.ID, &e.Name, &e.PaperID, &e.SubjectID, &e.AuthorID,
			&e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListForStudent retrieves the examinations a student is enrolled in,
// annotated with the student's attempt state, soonest first.
func (r *ExamRepository) ListForStudent(ctx context.Context, studentID, limit, offset int) ([]model.StudentExamItem, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM exam_students es
		 JOIN examinations e ON e.id = es.exam_id
		 WHERE es.student_id = $1 AND e.status <> 'draft'`, studentID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.name, e.subject_id, s.name, e.start_time, e.end_time, e.status,
		        tp.question_count, tp.total_score,
		        sub.id IS NOT NULL, COALESCE(sub.status = 'submitted', FALSE), sub.score
		 FROM exam_students es
		 JOIN examinations e ON e.id = es.exam_id
		 JOIN subjects s ON s.id = e.subject_id
		 JOIN test_papers tp ON tp.id = e.paper_id
		 LEFT JOIN submissions sub ON sub.exam_id = e.id AND sub.student_id = es.student_id
		 WHERE es.student_id = $1 AND e.status <> 'draft'
		 ORDER BY e.start_time ASC
		 LIMIT $2 OFFSET $3`, studentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []model.StudentExamItem
	for rows.Next() {
		var it model.StudentExamItem
		if err := rows.Scan(&it.ID, &it.Name, &it.SubjectID, &it.SubjectName,
			&it.StartTime, &it.EndTime, &it.Status,
			&it.QuestionCount, &it.TotalScore,
			&it.IsStarted, &it.IsSubmitted, &it.Score); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// GetForStudent retrieves one non-draft examination annotated with the
// student's attempt state. Returns pgx.ErrNoRows if the student is not
// enrolled or the examination is still a draft.
func (r *ExamRepository) GetForStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.StudentExamItem, error) {
	it := &model.StudentExamItem{}
	err := r.pool.QueryRow(ctx,
		`SELECT e.id, e.name, e.subject_id, s.name, e.start_time, e.end_time, e.status,
		        tp.question_count, tp.total_score,
		        sub.id IS NOT NULL, COALESCE(sub.status = 'submitted', FALSE), sub.score
		 FROM exam_students es
		 JOIN examinations e ON e.id = es.exam_id
		 JOIN subjects s ON s.id = e.subject_id
		 JOIN test_papers tp ON tp.id = e.paper_id
		 LEFT JOIN submissions sub ON sub.exam_id = e.id AND sub.student_id = es.student_id
		 WHERE es.exam_id = $1 AND es.student_id = $2 AND e.status <> 'draft'`,
		examID, studentID,
	).Scan(&it.ID, &it.Name, &it.SubjectID, &it.SubjectName,
		&it.StartTime, &it.EndTime, &it.Status,
		&it.QuestionCount, &it.TotalScore,
		&it.IsStarted, &it.IsSubmitted, &it.Score)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Enroll adds students to an examination, ignoring duplicates.
func (r *ExamRepository) Enroll(ctx context.Context, examID uuid.UUID, studentIDs []int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, sid := range studentIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO exam_students (exam_id, student_id)
			 VALUES ($1, $2)
			 ON CONFLICT (exam_id, student_id) DO NOTHING`,
			examID, sid)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Unenroll removes a student from an examination.
func (r *ExamRepository) Unenroll(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM exam_students WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID)
	return err
}

// IsEnrolled reports whether a student is enrolled in an examination.
func (r *ExamRepository) IsEnrolled(ctx context.Context, examID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_students WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	return exists, err
}

// ListEnrolledStudents retrieves the students enrolled in an examination.
func (r *ExamRepository) ListEnrolledStudents(ctx context.Context, examID uuid.UUID) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.name, u.email, u.role, u.password_hash, u.created_at, u.updated_at
		 FROM exam_students es
		 JOIN users u ON u.id = es.student_id
		 WHERE es.exam_id = $1
		 ORDER BY u.name ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListExpiredPublished retrieves published examinations whose end time plus
// grace has passed. Used by the deadline sweeper.
func (r *ExamRepository) ListExpiredPublished(ctx context.Context, now time.Time, grace time.Duration) ([]model.Examination, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, paper_id, subject_id, author_id, start_time, end_time, status, created_at, updated_at
		 FROM examinations
		 WHERE status = 'published' AND end_time < $1`,
		now.Add(-grace))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Examination
	for rows.Next() {
		var e model.Examination
		if err := rows.Scan(&e.ID, &e.Name, &e.PaperID, &e.SubjectID, &e.AuthorID,
			&e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
