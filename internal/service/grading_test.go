package service

import (
	"testing"

	"github.com/examly/examly-backend/internal/model"
	"github.com/google/uuid"
)

var (
	gradeQ1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	gradeQ2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	gradeQ3 = uuid.MustParse("33333333-3333-3333-3333-333333333333")

	optA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	optB = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	optC = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003")
)

func gradingKey() map[uuid.UUID]model.AnswerKeyEntry {
	return map[uuid.UUID]model.AnswerKeyEntry{
		gradeQ1: {Type: model.QuestionTypeSingleChoice, Score: 10, CorrectOptionIDs: []uuid.UUID{optA}},
		gradeQ2: {Type: model.QuestionTypeMultiChoice, Score: 20, CorrectOptionIDs: []uuid.UUID{optB, optC}},
		gradeQ3: {Type: model.QuestionTypeFillIn, Score: 15},
	}
}

func gradingOrder() []uuid.UUID {
	return []uuid.UUID{gradeQ1, gradeQ2, gradeQ3}
}

func TestGradeAttemptFullMarksOnChoiceQuestions(t *testing.T) {
	outcome := GradeAttempt(gradingOrder(), gradingKey(), []model.StudentAnswer{
		{QuestionID: gradeQ1, SelectedOptionIDs: []uuid.UUID{optA}},
		{QuestionID: gradeQ2, SelectedOptionIDs: []uuid.UUID{optC, optB}},
	})

	if outcome.Score != 30 {
		t.Fatalf("score = %v, want 30", outcome.Score)
	}
	if outcome.TotalPossible != 45 {
		t.Fatalf("total possible = %v, want 45", outcome.TotalPossible)
	}
	if !outcome.Details[0].IsCorrect || !outcome.Details[1].IsCorrect {
		t.Fatalf("choice answers should be correct: %+v", outcome.Details)
	}
}

func TestGradeAttemptSingleChoiceRejectsMultipleSelections(t *testing.T) {
	outcome := GradeAttempt(gradingOrder(), gradingKey(), []model.StudentAnswer{
		{QuestionID: gradeQ1, SelectedOptionIDs: []uuid.UUID{optA, optB}},
	})

	if outcome.Details[0].IsCorrect {
		t.Fatal("selecting two options on a single choice question must not score")
	}
	if outcome.Score != 0 {
		t.Fatalf("score = %v, want 0", outcome.Score)
	}
}

func TestGradeAttemptMultiChoiceNoPartialCredit(t *testing.T) {
	cases := []struct {
		name     string
		selected []uuid.UUID
	}{
		{"subset", []uuid.UUID{optB}},
		{"superset", []uuid.UUID{optA, optB, optC}},
		{"wrong", []uuid.UUID{optA}},
		{"empty", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := GradeAttempt(gradingOrder(), gradingKey(), []model.StudentAnswer{
				{QuestionID: gradeQ2, SelectedOptionIDs: tc.selected},
			})
			if outcome.Details[1].Score != 0 {
				t.Fatalf("score = %v, want 0", outcome.Details[1].Score)
			}
		})
	}
}

func TestGradeAttemptFillInPendsReview(t *testing.T) {
	outcome := GradeAttempt(gradingOrder(), gradingKey(), []model.StudentAnswer{
		{QuestionID: gradeQ3, Text: "photosynthesis"},
	})

	d := outcome.Details[2]
	if d.Score != 0 {
		t.Fatalf("fill in score = %v, want 0", d.Score)
	}
	if !d.PendingReview {
		t.Fatal("answered fill in question should be pending review")
	}
}

func TestGradeAttemptUnansweredQuestionsAppearInDetails(t *testing.T) {
	outcome := GradeAttempt(gradingOrder(), gradingKey(), nil)

	if len(outcome.Details) != 3 {
		t.Fatalf("details = %d, want 3", len(outcome.Details))
	}
	if outcome.TotalPossible != 45 {
		t.Fatalf("total possible = %v, want 45", outcome.TotalPossible)
	}
	for i, d := range outcome.Details {
		if d.Score != 0 || d.IsCorrect {
			t.Fatalf("detail %d should be zero: %+v", i, d)
		}
		if !d.Answer.Empty() {
			t.Fatalf("detail %d should carry an empty answer", i)
		}
	}
}

func TestGradeAttemptIgnoresUnknownQuestions(t *testing.T) {
	stray := uuid.MustParse("99999999-9999-9999-9999-999999999999")
	outcome := GradeAttempt(gradingOrder(), gradingKey(), []model.StudentAnswer{
		{QuestionID: stray, SelectedOptionIDs: []uuid.UUID{optA}},
	})

	if outcome.Score != 0 {
		t.Fatalf("score = %v, want 0", outcome.Score)
	}
	if len(outcome.Details) != 3 {
		t.Fatalf("details = %d, want 3", len(outcome.Details))
	}
}
