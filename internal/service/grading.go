package service

import (
	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
)

// GradeOutcome is the result of grading one attempt in memory.
type GradeOutcome struct {
	Score         float64
	TotalPossible float64
	Details       []model.AnswerDetail
}

// GradeAttempt scores a set of answers against an answer key, entirely in
// memory. The order slice fixes the detail ordering to the paper's question
// order. Questions missing from answers score zero and appear in the details
// with an empty answer.
//
// Scoring rules per question type:
//   - single_choice: full score when exactly one option is selected and it is
//     among the correct options.
//   - multi_choice: full score only on an exact match of the correct option
//     set. No partial credit.
//   - fill_in: zero, flagged as pending review for manual grading.
func GradeAttempt(order []uuid.UUID, key map[uuid.UUID]model.AnswerKeyEntry, answers []model.StudentAnswer) *GradeOutcome {
	byQuestion := make(map[uuid.UUID]model.StudentAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	outcome := &GradeOutcome{Details: make([]model.AnswerDetail, 0, len(order))}
	for _, qid := range order {
		entry, ok := key[qid]
		if !ok {
			continue
		}
		outcome.TotalPossible += entry.Score

		ans := byQuestion[qid]
		ans.QuestionID = qid
		detail := model.AnswerDetail{
			Answer:   ans,
			MaxScore: entry.Score,
		}

		switch entry.Type {
		case model.QuestionTypeSingleChoice:
			if len(ans.SelectedOptionIDs) == 1 && containsOption(entry.CorrectOptionIDs, ans.SelectedOptionIDs[0]) {
				detail.IsCorrect = true
				detail.Score = entry.Score
			}
		case model.QuestionTypeMultiChoice:
			if sameOptionSet(entry.CorrectOptionIDs, ans.SelectedOptionIDs) {
				detail.IsCorrect = true
				detail.Score = entry.Score
			}
		case model.QuestionTypeFillIn:
			// Free-text answers are graded by the teacher afterwards.
			detail.PendingReview = ans.Text != ""
		}

		outcome.Score += detail.Score
		outcome.Details = append(outcome.Details, detail)
	}
	return outcome
}

func containsOption(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sameOptionSet(correct, selected []uuid.UUID) bool {
	if len(correct) == 0 || len(correct) != len(selected) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(correct))
	for _, id := range correct {
		set[id] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
