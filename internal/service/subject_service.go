package service

import (
	"context"

	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
)

// SubjectService handles subject management.
type SubjectService struct {
	subjects *repository.SubjectRepository
}

// NewSubjectService creates a new SubjectService.
func NewSubjectService(subjects *repository.SubjectRepository) *SubjectService {
	return &SubjectService{subjects: subjects}
}

// List retrieves all subjects.
func (s *SubjectService) List(ctx context.Context) ([]model.Subject, error) {
	return s.subjects.List(ctx)
}

// Create adds a subject.
func (s *SubjectService) Create(ctx context.Context, name string) (*model.Subject, error) {
	subject := &model.Subject{Name: name}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Update renames a subject.
func (s *SubjectService) Update(ctx context.Context, id int, name string) error {
	return s.subjects.Update(ctx, id, name)
}

// Delete removes a subject unless questions or papers still reference it.
func (s *SubjectService) Delete(ctx context.Context, id int) error {
	refs, err := s.subjects.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrDependencyExists
	}
	return s.subjects.Delete(ctx, id)
}
