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

// TestPaperHandler serves test paper assembly endpoints.
type TestPaperHandler struct {
	papers *service.TestPaperService
}

// NewTestPaperHandler creates a new TestPaperHandler.
func NewTestPaperHandler(papers *service.TestPaperService) *TestPaperHandler {
	return &TestPaperHandler{papers: papers}
}

// List handles GET /api/v1/teacher/papers.
func (h *TestPaperHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := pageParams(c)

	papers, total, err := h.papers.List(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, papers, response.Paginate(page, perPage, total))
}

// Get handles GET /api/v1/teacher/papers/:id.
func (h *TestPaperHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	paper, err := h.papers.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// Questions handles GET /api/v1/teacher/papers/:id/questions.
func (h *TestPaperHandler) Questions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	questions, err := h.papers.Questions(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// Create handles POST /api/v1/teacher/papers.
func (h *TestPaperHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.TestPaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	paper, err := h.papers.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, paper)
}

// Update handles PUT /api/v1/teacher/papers/:id.
func (h *TestPaperHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.TestPaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	paper, err := h.papers.Update(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// Delete handles DELETE /api/v1/teacher/papers/:id.
func (h *TestPaperHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.papers.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
