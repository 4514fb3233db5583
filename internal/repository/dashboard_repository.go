package repository

import (
	"context"

	"github.com/examly/examly-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository aggregates counts for the teacher and student dashboards.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// TeacherStats collects the content and activity counts for one teacher.
func (r *DashboardRepository) TeacherStats(ctx context.Context, teacherID int) (*model.TeacherDashboard, error) {
	d := &model.TeacherDashboard{}
	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM subjects),
		   (SELECT COUNT(*) FROM questions WHERE author_id = $1),
		   (SELECT COUNT(*) FROM test_papers WHERE author_id = $1),
		   (SELECT COUNT(*) FROM examinations WHERE author_id = $1),
		   (SELECT COUNT(*) FROM examinations WHERE author_id = $1 AND status = 'published'),
		   (SELECT COUNT(*) FROM users WHERE role = 'student'),
		   (SELECT COUNT(*) FROM submissions s
		      JOIN examinations e ON e.id = s.exam_id
		      WHERE e.author_id = $1 AND s.status = 'submitted')`,
		teacherID,
	).Scan(&d.SubjectCount, &d.QuestionCount, &d.PaperCount, &d.ExamCount,
		&d.PublishedExams, &d.StudentCount, &d.SubmissionCount)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// StudentStats collects one student's exam activity counts.
func (r *DashboardRepository) StudentStats(ctx context.Context, studentID int) (*model.StudentDashboard, error) {
	d := &model.StudentDashboard{}
	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM exam_students es
		      JOIN examinations e ON e.id = es.exam_id
		      WHERE es.student_id = $1 AND e.status <> 'draft'),
		   (SELECT COUNT(*) FROM submissions WHERE student_id = $1 AND status = 'submitted'),
		   (SELECT COUNT(*) FROM exam_students es
		      JOIN examinations e ON e.id = es.exam_id
		      LEFT JOIN submissions s ON s.exam_id = es.exam_id AND s.student_id = es.student_id
		      WHERE es.student_id = $1 AND e.status = 'published'
		        AND (s.id IS NULL OR s.status = 'in_progress')),
		   (SELECT AVG(score) FROM submissions WHERE student_id = $1 AND status = 'submitted' AND score IS NOT NULL)`,
		studentID,
	).Scan(&d.EnrolledExams, &d.CompletedExams, &d.PendingExams, &d.AverageScore)
	if err != nil {
		return nil, err
	}
	return d, nil
}
