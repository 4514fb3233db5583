package handler

import (
	"net/http"

	"github.com/examly/examly-backend/internal/middleware"
	"github.com/examly/examly-backend/internal/response"
	"github.com/examly/examly-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler serves dashboard counts and the student picker.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// TeacherStats handles GET /api/v1/teacher/dashboard.
func (h *DashboardHandler) TeacherStats(c *gin.Context) {
	claims := middleware.GetClaims(c)

	stats, err := h.dashboards.TeacherStats(c.Request.Context(), claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// StudentStats handles GET /api/v1/student/dashboard.
func (h *DashboardHandler) StudentStats(c *gin.Context) {
	claims := middleware.GetClaims(c)

	stats, err := h.dashboards.StudentStats(c.Request.Context(), claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// Students handles GET /api/v1/teacher/students.
func (h *DashboardHandler) Students(c *gin.Context) {
	page, perPage, limit, offset := pageParams(c)

	students, total, err := h.dashboards.ListStudents(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, students, response.Paginate(page, perPage, total))
}
