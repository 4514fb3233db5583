package model

import (
	"github.com/google/uuid"
)

// AnswerPersistJob is one autosaved answer queued for database persistence.
type AnswerPersistJob struct {
	ExamID    uuid.UUID     `json:"exam_id"`
	StudentID int           `json:"student_id"`
	Answer    StudentAnswer `json:"answer"`
}

// ScorePersistJob is one graded attempt queued for database persistence.
// ExamID and StudentID let the worker clean up the answer cache afterwards.
type ScorePersistJob struct {
	SubmissionID uuid.UUID      `json:"submission_id"`
	ExamID       uuid.UUID      `json:"exam_id"`
	StudentID    int            `json:"student_id"`
	Score        float64        `json:"score"`
	Details      []AnswerDetail `json:"details"`
}
