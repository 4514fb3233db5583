package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the lifecycle of an examination.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusPublished ExamStatus = "published"
	ExamStatusClosed    ExamStatus = "closed"
)

// Examination schedules a test paper for a time window.
type Examination struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	PaperID   uuid.UUID  `json:"paper_id"`
	SubjectID int        `json:"subject_id"`
	AuthorID  int        `json:"author_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    ExamStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ExaminationRequest is the payload for creating or updating an examination.
type ExaminationRequest struct {
	Name      string     `json:"name" binding:"required,min=1,max=255"`
	PaperID   uuid.UUID  `json:"paper_id" binding:"required"`
	StartTime *time.Time `json:"start_time" binding:"required"`
	EndTime   *time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

// EnrollRequest is the payload for enrolling students into an examination.
type EnrollRequest struct {
	StudentIDs []int `json:"student_ids" binding:"required,min=1"`
}

// ExamPayload is the Redis-cached paper sent to students (no correct answers).
type ExamPayload struct {
	ExamID       uuid.UUID            `json:"exam_id"`
	ExamName     string               `json:"exam_name"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      time.Time            `json:"end_time"`
	PassingScore float64              `json:"passing_score"`
	Questions    []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a paper question stripped of correctness data.
type QuestionForStudent struct {
	ID       uuid.UUID          `json:"id"`
	Type     QuestionType       `json:"type"`
	Prompt   string             `json:"prompt"`
	Score    float64            `json:"score"`
	Options  []OptionForStudent `json:"options,omitempty"`
	Position int                `json:"position"`
}

// AnswerKeyEntry is one question's grading data, cached per examination.
type AnswerKeyEntry struct {
	Type             QuestionType `json:"type"`
	Score            float64      `json:"score"`
	CorrectOptionIDs []uuid.UUID  `json:"correct_option_ids,omitempty"`
}
