package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeFillIn       QuestionType = "fill_in"
)

// Choice reports whether the question type is answered by selecting options.
func (t QuestionType) Choice() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultiChoice
}

// Question represents a bank question owned by a teacher.
type Question struct {
	ID        uuid.UUID    `json:"id"`
	SubjectID int          `json:"subject_id"`
	AuthorID  int          `json:"author_id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Options   []Option     `json:"options,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Option is one selectable answer of a choice question.
type Option struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect bool      `json:"is_correct,omitempty"`
	Position  int       `json:"position"`
}

// OptionForStudent is an option stripped of the correctness flag.
type OptionForStudent struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// OptionRequest is one option in a question create/update payload.
type OptionRequest struct {
	Text      string `json:"text" binding:"required,min=1,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionRequest is the payload for creating or replacing a question.
type QuestionRequest struct {
	SubjectID int             `json:"subject_id" binding:"required"`
	Type      string          `json:"type" binding:"required,oneof=single_choice multi_choice fill_in"`
	Prompt    string          `json:"prompt" binding:"required,min=1,max=2000"`
	Options   []OptionRequest `json:"options" binding:"omitempty,dive"`
}
