package service

import (
	"context"

	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
)

// DashboardService serves the teacher and student landing page counts.
type DashboardService struct {
	dashboards *repository.DashboardRepository
	users      *repository.UserRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(dashboards *repository.DashboardRepository, users *repository.UserRepository) *DashboardService {
	return &DashboardService{dashboards: dashboards, users: users}
}

// TeacherStats collects a teacher's dashboard counts.
func (s *DashboardService) TeacherStats(ctx context.Context, teacherID int) (*model.TeacherDashboard, error) {
	return s.dashboards.TeacherStats(ctx, teacherID)
}

// StudentStats collects a student's dashboard counts.
func (s *DashboardService) StudentStats(ctx context.Context, studentID int) (*model.StudentDashboard, error) {
	return s.dashboards.StudentStats(ctx, studentID)
}

// ListStudents retrieves students for teacher-side enrollment pickers.
func (s *DashboardService) ListStudents(ctx context.Context, search string, limit, offset int) ([]model.User, int64, error) {
	return s.users.ListStudents(ctx, search, limit, offset)
}
