package model

import (
	"time"

	"github.com/google/uuid"
)

// TestPaper is an ordered assembly of questions with assigned scores.
type TestPaper struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	SubjectID     int       `json:"subject_id"`
	AuthorID      int       `json:"author_id"`
	TotalScore    float64   `json:"total_score"`
	PassingScore  float64   `json:"passing_score"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PaperQuestion links a question into a paper with its position and score.
type PaperQuestion struct {
	QuestionID uuid.UUID `json:"question_id"`
	Score      float64   `json:"score"`
	Position   int       `json:"position"`
}

// PaperQuestionDetail is a paper entry with the full question resolved.
type PaperQuestionDetail struct {
	Question Question `json:"question"`
	Score    float64  `json:"score"`
	Position int      `json:"position"`
}

// PaperQuestionRequest is one entry of a paper create/update payload.
type PaperQuestionRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Score      float64   `json:"score" binding:"required,gt=0"`
}

// TestPaperRequest is the payload for creating or replacing a test paper.
type TestPaperRequest struct {
	Name         string                 `json:"name" binding:"required,min=1,max=255"`
	SubjectID    int                    `json:"subject_id" binding:"required"`
	PassingScore float64                `json:"passing_score" binding:"min=0"`
	Questions    []PaperQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
