package service

import (
	"context"
	"fmt"

	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/google/uuid"
)

// TestPaperService handles test paper assembly.
type TestPaperService struct {
	papers    *repository.TestPaperRepository
	questions *repository.QuestionRepository
}

// NewTestPaperService creates a new TestPaperService.
func NewTestPaperService(papers *repository.TestPaperRepository, questions *repository.QuestionRepository) *TestPaperService {
	return &TestPaperService{papers: papers, questions: questions}
}

// Create validates and stores a new paper. Question order follows the
// request order.
func (s *TestPaperService) Create(ctx context.Context, authorID int, req *model.TestPaperRequest) (*model.TestPaper, error) {
	entries, err := s.buildEntries(ctx, authorID, req.Questions)
	if err != nil {
		return nil, err
	}

	paper := &model.TestPaper{
		Name:         req.Name,
		SubjectID:    req.SubjectID,
		AuthorID:     authorID,
		PassingScore: req.PassingScore,
	}
	if err := s.papers.Create(ctx, paper, entries); err != nil {
		return nil, err
	}
	return paper, nil
}

// Get retrieves one of the teacher's papers.
func (s *TestPaperService) Get(ctx context.Context, authorID int, id uuid.UUID) (*model.TestPaper, error) {
	paper, err := s.papers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.AuthorID != authorID {
		return nil, ErrForbidden
	}
	return paper, nil
}

// List retrieves the teacher's papers.
func (s *TestPaperService) List(ctx context.Context, authorID, limit, offset int) ([]model.TestPaper, int64, error) {
	return s.papers.ListByAuthor(ctx, authorID, limit, offset)
}

// Questions retrieves a paper's entries with full questions, in paper order.
func (s *TestPaperService) Questions(ctx context.Context, authorID int, id uuid.UUID) ([]model.PaperQuestionDetail, error) {
	if _, err := s.Get(ctx, authorID, id); err != nil {
		return nil, err
	}
	return s.papers.ListQuestions(ctx, id)
}

// Update replaces a paper and its entry set.
func (s *TestPaperService) Update(ctx context.Context, authorID int, id uuid.UUID, req *model.TestPaperRequest) (*model.TestPaper, error) {
	paper, err := s.Get(ctx, authorID, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.buildEntries(ctx, authorID, req.Questions)
	if err != nil {
		return nil, err
	}

	paper.Name = req.Name
	paper.SubjectID = req.SubjectID
	paper.PassingScore = req.PassingScore
	if err := s.papers.Update(ctx, paper, entries); err != nil {
		return nil, err
	}
	return paper, nil
}

// Delete removes a paper unless an examination still references it.
func (s *TestPaperService) Delete(ctx context.Context, authorID int, id uuid.UUID) error {
	if _, err := s.Get(ctx, authorID, id); err != nil {
		return err
	}

	refs, err := s.papers.CountExamReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrDependencyExists
	}
	return s.papers.Delete(ctx, id)
}

// buildEntries resolves the requested questions, checks ownership and
// assigns positions in request order.
func (s *TestPaperService) buildEntries(ctx context.Context, authorID int, reqs []model.PaperQuestionRequest) ([]model.PaperQuestion, error) {
	ids := make([]uuid.UUID, len(reqs))
	seen := make(map[uuid.UUID]struct{}, len(reqs))
	for i, r := range reqs {
		if _, dup := seen[r.QuestionID]; dup {
			return nil, fmt.Errorf("question %s listed twice", r.QuestionID)
		}
		seen[r.QuestionID] = struct{}{}
		ids[i] = r.QuestionID
	}

	questions, err := s.questions.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]model.PaperQuestion, len(reqs))
	for i, r := range reqs {
		q, ok := questions[r.QuestionID]
		if !ok {
			return nil, fmt.Errorf("question %s not found", r.QuestionID)
		}
		if q.AuthorID != authorID {
			return nil, ErrForbidden
		}
		entries[i] = model.PaperQuestion{QuestionID: r.QuestionID, Score: r.Score, Position: i}
	}
	return entries, nil
}
