package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResultRow is one student's outcome in a teacher's results listing.
type ExamResultRow struct {
	StudentID     int        `json:"student_id"`
	StudentName   string     `json:"student_name"`
	Username      string     `json:"username"`
	Status        string     `json:"status"`
	Score         *float64   `json:"score,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	AutoSubmitted bool       `json:"auto_submitted"`
}

// StudentExamItem is one examination in a student's listing, annotated with
// the student's own attempt state.
type StudentExamItem struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	SubjectID     int        `json:"subject_id"`
	SubjectName   string     `json:"subject_name"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        ExamStatus `json:"status"`
	QuestionCount int        `json:"question_count"`
	TotalScore    float64    `json:"total_score"`
	IsStarted     bool       `json:"is_started"`
	IsSubmitted   bool       `json:"is_submitted"`
	Score         *float64   `json:"score,omitempty"`
}

// SubmissionResult is a student's graded outcome with the answer breakdown.
type SubmissionResult struct {
	Submission    Submission     `json:"submission"`
	Details       []AnswerDetail `json:"details"`
	TotalPossible float64        `json:"total_possible"`
	Passed        bool           `json:"passed"`
}

// TeacherDashboard aggregates a teacher's content and activity counts.
type TeacherDashboard struct {
	SubjectCount    int64 `json:"subject_count"`
	QuestionCount   int64 `json:"question_count"`
	PaperCount      int64 `json:"paper_count"`
	ExamCount       int64 `json:"exam_count"`
	PublishedExams  int64 `json:"published_exams"`
	StudentCount    int64 `json:"student_count"`
	SubmissionCount int64 `json:"submission_count"`
}

// StudentDashboard aggregates a student's exam activity.
type StudentDashboard struct {
	EnrolledExams  int64    `json:"enrolled_exams"`
	CompletedExams int64    `json:"completed_exams"`
	PendingExams   int64    `json:"pending_exams"`
	AverageScore   *float64 `json:"average_score,omitempty"`
}
