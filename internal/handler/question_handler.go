package handler

import (
	"net/http"
	"strconv"

	"github.com/examly/examly-backend/internal/middleware"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/response"
	"github.com/examly/examly-backend/internal/service"
	"github.com/examly/examly-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// QuestionHandler serves question bank endpoints.
type QuestionHandler struct {
	questions *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

// List handles GET /api/v1/teacher/questions.
func (h *QuestionHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := pageParams(c)
	subjectID, _ := strconv.Atoi(c.Query("subject_id"))

	questions, total, err := h.questions.List(c.Request.Context(),
		claims.UserID, subjectID, c.Query("search"), limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, questions, response.Paginate(page, perPage, total))
}

// Get handles GET /api/v1/teacher/questions/:id.
func (h *QuestionHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	question, err := h.questions.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, question)
}

// Create handles POST /api/v1/teacher/questions.
func (h *QuestionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	question, err := h.questions.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, question)
}

// Update handles PUT /api/v1/teacher/questions/:id.
func (h *QuestionHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	question, err := h.questions.Update(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, question)
}

// Delete handles DELETE /api/v1/teacher/questions/:id.
func (h *QuestionHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.questions.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
