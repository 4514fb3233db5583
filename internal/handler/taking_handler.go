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

// TakingHandler serves the student-side exam taking REST endpoints. The live
// session (countdown, navigation) runs over the WebSocket stream; these
// endpoints cover listing, start, autosave fallback, status recovery and the
// final result.
type TakingHandler struct {
	taking *service.TakingService
}

// NewTakingHandler creates a new TakingHandler.
func NewTakingHandler(taking *service.TakingService) *TakingHandler {
	return &TakingHandler{taking: taking}
}

// Available handles GET /api/v1/student/exams.
func (h *TakingHandler) Available(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := pageParams(c)

	exams, total, err := h.taking.AvailableExams(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, exams, response.Paginate(page, perPage, total))
}

// Info handles GET /api/v1/student/exams/:exam_id.
func (h *TakingHandler) Info(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	info, err := h.taking.Info(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

// Start handles POST /api/v1/student/exams/:exam_id/start.
func (h *TakingHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	res, err := h.taking.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Paper handles GET /api/v1/student/exams/:exam_id/paper.
func (h *TakingHandler) Paper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	payload, err := h.taking.Paper(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// SaveAnswer handles PUT /api/v1/student/exams/:exam_id/answers. This is the
// REST fallback for clients without a live stream; last write wins.
func (h *TakingHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	ans := model.StudentAnswer{
		QuestionID:        req.QuestionID,
		Text:              req.Text,
		SelectedOptionIDs: req.SelectedOptionIDs,
	}
	if err := h.taking.SaveAnswer(c.Request.Context(), examID, claims.UserID, ans); err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit handles POST /api/v1/student/exams/:exam_id/submit.
func (h *TakingHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, fields)
		return
	}

	answers := make([]model.StudentAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, model.StudentAnswer{
			QuestionID:        a.QuestionID,
			Text:              a.Text,
			SelectedOptionIDs: a.SelectedOptionIDs,
		})
	}

	result, err := h.taking.Submit(c.Request.Context(), examID, claims.UserID, answers)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Status handles GET /api/v1/student/exams/:exam_id/status. Used by clients
// that reloaded mid-attempt to restore the countdown and draft answers.
func (h *TakingHandler) Status(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	status, err := h.taking.Status(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// Result handles GET /api/v1/student/exams/:exam_id/result.
func (h *TakingHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	result, err := h.taking.Result(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
