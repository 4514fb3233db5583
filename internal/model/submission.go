package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates the server-side states of an exam attempt.
type SubmissionStatus string

const (
	SubmissionStatusInProgress SubmissionStatus = "in_progress"
	SubmissionStatusSubmitted  SubmissionStatus = "submitted"
)

// Submission is one student's attempt at one examination.
type Submission struct {
	ID            uuid.UUID        `json:"id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	StudentID     int              `json:"student_id"`
	StartedAt     time.Time        `json:"started_at"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	Status        SubmissionStatus `json:"status"`
	Score         *float64         `json:"score,omitempty"`
	AutoSubmitted bool             `json:"auto_submitted"`
}

// StudentAnswer is one answer as stored and exchanged with the client.
// Exactly one of Text / SelectedOptionIDs is meaningful, depending on the
// question type.
type StudentAnswer struct {
	QuestionID        uuid.UUID   `json:"question_id"`
	Text              string      `json:"text,omitempty"`
	SelectedOptionIDs []uuid.UUID `json:"selected_option_ids,omitempty"`
}

// Empty reports whether the answer carries no response at all.
func (a StudentAnswer) Empty() bool {
	return a.Text == "" && len(a.SelectedOptionIDs) == 0
}

// SaveAnswerRequest is the payload for the single-answer autosave endpoint.
type SaveAnswerRequest struct {
	QuestionID        uuid.UUID   `json:"question_id" binding:"required"`
	Text              string      `json:"text" binding:"omitempty,max=5000"`
	SelectedOptionIDs []uuid.UUID `json:"selected_option_ids" binding:"omitempty,max=50"`
}

// SubmitRequest is the payload for the final submission flush.
type SubmitRequest struct {
	Answers []SaveAnswerRequest `json:"answers" binding:"omitempty,dive"`
}

// AnswerDetail is one graded answer inside a submission result.
type AnswerDetail struct {
	Answer        StudentAnswer `json:"answer"`
	IsCorrect     bool          `json:"is_correct"`
	Score         float64       `json:"score"`
	MaxScore      float64       `json:"max_score"`
	PendingReview bool          `json:"pending_review,omitempty"`
}

// SubmitResult is returned to the student after grading.
type SubmitResult struct {
	Score         float64 `json:"score"`
	TotalPossible float64 `json:"total_possible"`
	Passed        bool    `json:"passed"`
	AutoSubmitted bool    `json:"auto_submitted"`
}

// TakingStatus reports the attempt state for a reloaded client.
type TakingStatus struct {
	ExamID           uuid.UUID       `json:"exam_id"`
	ExamName         string          `json:"exam_name"`
	IsStarted        bool            `json:"is_started"`
	IsSubmitted      bool            `json:"is_submitted"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	SubmittedAt      *time.Time      `json:"submitted_at,omitempty"`
	RemainingSeconds *int            `json:"remaining_seconds,omitempty"`
	DraftAnswers     []StudentAnswer `json:"draft_answers,omitempty"`
	Score            *float64        `json:"score,omitempty"`
}

// StartResult is returned when a student starts (or resumes) an attempt.
type StartResult struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	StartedAt    time.Time `json:"started_at"`
	EndTime      time.Time `json:"end_time"`
	Resumed      bool      `json:"resumed"`
}
