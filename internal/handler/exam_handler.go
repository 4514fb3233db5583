package handler

import (
	"net/http"

	"github.com/examly/examly-backend/internal/middleware"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/response"
	"github.com/examly/examly-backend/internal/service"
	"github.com/examly/examly-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// ExamHandler serves examination lifecycle and enrollment endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// List handles GET /api/v1/teacher/exams.
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := pageParams(c)

	exams, total, err := h.exams.List(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, exams, response.Paginate(page, perPage, total))
}

// Get handles GET /api/v1/teacher/exams/:id.
func (h *ExamHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.exams.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Create handles POST /api/v1/teacher/exams.
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.ExaminationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// Update handles PUT /api/v1/teacher/exams/:id.
func (h *ExamHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.ExaminationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Update(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Delete handles DELETE /api/v1/teacher/exams/:id.
func (h *ExamHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.exams.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Publish handles POST /api/v1/teacher/exams/:id/publish. Publishing warms
// the Redis caches that serve exam taking.
func (h *ExamHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.exams.Publish(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Close handles POST /api/v1/teacher/exams/:id/close.
func (h *ExamHandler) Close(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.exams.Close(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Enroll handles POST /api/v1/teacher/exams/:id/students.
func (h *ExamHandler) Enroll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.EnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	if err := h.exams.Enroll(c.Request.Context(), claims.UserID, id, req.StudentIDs); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"enrolled": len(req.StudentIDs)})
}

// Unenroll handles DELETE /api/v1/teacher/exams/:id/students/:student_id.
func (h *ExamHandler) Unenroll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	studentID, ok := intParam(c, "student_id")
	if !ok {
		return
	}

	if err := h.exams.Unenroll(c.Request.Context(), claims.UserID, id, studentID); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unenrolled": true})
}

// Students handles GET /api/v1/teacher/exams/:id/students.
func (h *ExamHandler) Students(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	students, err := h.exams.EnrolledStudents(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, students)
}

// Results handles GET /api/v1/teacher/exams/:id/results.
func (h *ExamHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	page, perPage, limit, offset := pageParams(c)

	results, total, err := h.exams.Results(c.Request.Context(), claims.UserID, id, limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, results, response.Paginate(page, perPage, total))
}
