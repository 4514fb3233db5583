package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/google/uuid"
)

// Question shape errors surfaced to the API as validation failures.
var (
	ErrChoiceNeedsOptions   = errors.New("choice questions need at least two options")
	ErrSingleChoiceOneRight = errors.New("single choice questions need exactly one correct option")
	ErrMultiChoiceOneRight  = errors.New("multi choice questions need at least one correct option")
	ErrFillInHasOptions     = errors.New("fill in questions cannot have options")
)

// QuestionService handles question bank management.
type QuestionService struct {
	questions *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questions: questions}
}

// Create validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, authorID int, req *model.QuestionRequest) (*model.Question, error) {
	q, err := buildQuestion(authorID, req)
	if err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Get retrieves one of the teacher's questions with its options.
func (s *QuestionService) Get(ctx context.Context, authorID int, id uuid.UUID) (*model.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.AuthorID != authorID {
		return nil, ErrForbidden
	}
	return q, nil
}

// List retrieves the teacher's questions.
func (s *QuestionService) List(ctx context.Context, authorID, subjectID int, search string, limit, offset int) ([]model.Question, int64, error) {
	return s.questions.List(ctx, authorID, subjectID, search, limit, offset)
}

// Update replaces a question and its options.
func (s *QuestionService) Update(ctx context.Context, authorID int, id uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	existing, err := s.Get(ctx, authorID, id)
	if err != nil {
		return nil, err
	}

	q, err := buildQuestion(authorID, req)
	if err != nil {
		return nil, err
	}
	q.ID = existing.ID
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a question unless a paper still references it.
func (s *QuestionService) Delete(ctx context.Context, authorID int, id uuid.UUID) error {
	if _, err := s.Get(ctx, authorID, id); err != nil {
		return err
	}

	refs, err := s.questions.CountPaperReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrDependencyExists
	}
	return s.questions.Delete(ctx, id)
}

func buildQuestion(authorID int, req *model.QuestionRequest) (*model.Question, error) {
	qType := model.QuestionType(req.Type)
	if err := validateShape(qType, req.Options); err != nil {
		return nil, err
	}

	q := &model.Question{
		SubjectID: req.SubjectID,
		AuthorID:  authorID,
		Type:      qType,
		Prompt:    req.Prompt,
	}
	for i, opt := range req.Options {
		q.Options = append(q.Options, model.Option{
			Text:      opt.Text,
			IsCorrect: opt.IsCorrect,
			Position:  i,
		})
	}
	return q, nil
}

func validateShape(qType model.QuestionType, options []model.OptionRequest) error {
	correct := 0
	for _, opt := range options {
		if opt.IsCorrect {
			correct++
		}
	}

	switch qType {
	case model.QuestionTypeSingleChoice:
		if len(options) < 2 {
			return ErrChoiceNeedsOptions
		}
		if correct != 1 {
			return ErrSingleChoiceOneRight
		}
	case model.QuestionTypeMultiChoice:
		if len(options) < 2 {
			return ErrChoiceNeedsOptions
		}
		if correct < 1 {
			return ErrMultiChoiceOneRight
		}
	case model.QuestionTypeFillIn:
		if len(options) > 0 {
			return ErrFillInHasOptions
		}
	default:
		return fmt.Errorf("unknown question type %q", qType)
	}
	return nil
}
