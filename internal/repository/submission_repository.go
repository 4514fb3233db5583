package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScoreUpdate carries one graded submission for deferred persistence.
type ScoreUpdate struct {
	SubmissionID uuid.UUID            `json:"submission_id"`
	Score        float64              `json:"score"`
	Details      []model.AnswerDetail `json:"details"`
}

// SubmissionRepository handles attempt and answer data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Get retrieves a student's submission for an examination.
func (r *SubmissionRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, submitted_at, status, score, auto_submitted
		 FROM submissions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.SubmittedAt, &s.Status, &s.Score, &s.AutoSubmitted)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateIfAbsent inserts an in-progress submission, or returns the existing
// one. The second return value reports whether a new row was created.
func (r *SubmissionRepository) CreateIfAbsent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, bool, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, student_id, status)
		 VALUES ($1, $2, 'in_progress')
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, exam_id, student_id, started_at, submitted_at, status, score, auto_submitted`,
		examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.SubmittedAt, &s.Status, &s.Score, &s.AutoSubmitted)
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.Get(ctx, examID, studentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// MarkSubmitted transitions an in-progress submission to submitted.
// Returns pgx.ErrNoRows if the submission was already submitted, which makes
// concurrent submits race-safe at the database level.
func (r *SubmissionRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time, autoSubmitted bool) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET status = 'submitted', submitted_at = $1, auto_submitted = $2
		 WHERE id = $3 AND status = 'in_progress'`,
		submittedAt, autoSubmitted, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateScore persists one graded submission's score and answer breakdown.
func (r *SubmissionRepository) UpdateScore(ctx context.Context, id uuid.UUID, score float64, details []model.AnswerDetail) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submissions SET score = $1, details = $2 WHERE id = $3`,
		score, details, id)
	return err
}

// BulkUpdateScores persists a batch of graded submissions in one statement.
func (r *SubmissionRepository) BulkUpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(updates))
	scores := make([]float64, len(updates))
	details := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.SubmissionID
		scores[i] = u.Score
		raw, err := json.Marshal(u.Details)
		if err != nil {
			return err
		}
		details[i] = string(raw)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE submissions AS s
		 SET score = u.score, details = u.details::jsonb
		 FROM (
		     SELECT UNNEST($1::uuid[]) AS id,
		            UNNEST($2::float8[]) AS score,
		            UNNEST($3::text[]) AS details
		 ) AS u
		 WHERE s.id = u.id`,
		ids, scores, details)
	return err
}

// GetDetails retrieves the graded answer breakdown of a submission.
func (r *SubmissionRepository) GetDetails(ctx context.Context, id uuid.UUID) ([]model.AnswerDetail, error) {
	var details []model.AnswerDetail
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(details, '[]'::jsonb) FROM submissions WHERE id = $1`, id,
	).Scan(&details)
	if err != nil {
		return nil, err
	}
	return details, nil
}

// UpsertAnswer writes one draft answer, last write wins.
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, examID uuid.UUID, studentID int, ans model.StudentAnswer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO submission_answers (exam_id, student_id, question_id, answer, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (exam_id, student_id, question_id)
		 DO UPDATE SET answer = EXCLUDED.answer, updated_at = NOW()`,
		examID, studentID, ans.QuestionID, ans)
	return err
}

// ListAnswers retrieves a student's draft answers for an examination.
func (r *SubmissionRepository) ListAnswers(ctx context.Context, examID uuid.UUID, studentID int) ([]model.StudentAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT answer FROM submission_answers
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.StudentAnswer
	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// DeleteAnswers drops the draft answers of a finished attempt.
func (r *SubmissionRepository) DeleteAnswers(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM submission_answers WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID)
	return err
}

// ListResults retrieves the per-student outcome of an examination, covering
// enrolled students who never started as well.
func (r *SubmissionRepository) ListResults(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_students WHERE exam_id = $1`, examID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.username,
		        COALESCE(s.status::text, 'not_started'),
		        s.score, s.started_at, s.submitted_at, COALESCE(s.auto_submitted, FALSE)
		 FROM exam_students es
		 JOIN users u ON u.id = es.student_id
		 LEFT JOIN submissions s ON s.exam_id = es.exam_id AND s.student_id = es.student_id
		 WHERE es.exam_id = $1
		 ORDER BY u.name ASC
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResultRow
	for rows.Next() {
		var row model.ExamResultRow
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.Username,
			&row.Status, &row.Score, &row.StartedAt, &row.SubmittedAt, &row.AutoSubmitted); err != nil {
			return nil, 0, err
		}
		results = append(results, row)
	}
	return results, total, rows.Err()
}

// ListInProgress retrieves the unfinished attempts of an examination.
// Used by the deadline sweeper after the exam window closes.
func (r *SubmissionRepository) ListInProgress(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, started_at, submitted_at, status, score, auto_submitted
		 FROM submissions
		 WHERE exam_id = $1 AND status = 'in_progress'`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.SubmittedAt, &s.Status, &s.Score, &s.AutoSubmitted); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
