package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/examly/examly-backend/internal/attempt"
	"github.com/examly/examly-backend/internal/middleware"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/response"
	"github.com/examly/examly-backend/internal/service"
	ws "github.com/examly/examly-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsReadLimit    = 32 * 1024
	wsPongWait     = 60 * time.Second
	wsCloseTimeout = 5 * time.Second
)

// WSHandler serves the live exam stream. Each connection owns one attempt
// session: the server runs the countdown, caches answers in memory with
// best-effort persistence, and forces submission when time runs out, so a
// flaky client cannot stretch the exam window.
type WSHandler struct {
	taking  *service.TakingService
	exams   *service.ExamService
	log     zerolog.Logger
	upgrade websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. allowedOrigins empty means all
// origins are accepted.
func NewWSHandler(taking *service.TakingService, exams *service.ExamService, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		taking: taking,
		exams:  exams,
		log:    log.With().Str("component", "ws_handler").Logger(),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// Stream handles GET /ws/v1/student/exams/:exam_id/stream.
func (h *WSHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	// Enrollment and exam visibility are checked before the upgrade so the
	// client gets a proper HTTP error instead of an immediate close.
	if _, err := h.taking.Info(c.Request.Context(), examID, claims.UserID); err != nil {
		serviceError(c, err)
		return
	}
	payload, err := h.exams.Payload(c.Request.Context(), examID)
	if err != nil {
		serviceError(c, err)
		return
	}

	conn, err := h.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	log := h.log.With().
		Str("exam_id", examID.String()).
		Int("student_id", claims.UserID).
		Logger()

	session, err := attempt.NewSession(examID,
		attempt.QuestionsFromPayload(payload.Questions),
		h.taking.BackendFor(claims.UserID), log)
	if err != nil {
		_ = ws.WriteError(conn, response.ErrNoQuestions)
		conn.Close()
		return
	}

	stream := &examStream{
		handler: h,
		conn:    conn,
		session: session,
		examID:  examID,
		student: claims.UserID,
		out:     make(chan ws.ServerMessage, 32),
		log:     log,
	}
	stream.run(c.Request.Context())
}

// examStream is one live connection bound to one attempt session.
type examStream struct {
	handler *WSHandler
	conn    *websocket.Conn
	session *attempt.Session
	examID  uuid.UUID
	student int

	out    chan ws.ServerMessage
	runner *attempt.Runner
	log    zerolog.Logger
}

func (s *examStream) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	writerDone := make(chan struct{})
	go s.writeLoop(writerDone)

	s.conn.SetReadLimit(wsReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))

	s.readLoop(ctx)

	// Reader is gone. Stop the countdown, flush pending frames and close.
	cancel()
	close(s.out)
	<-writerDone
	s.conn.Close()

	if s.runner != nil {
		select {
		case <-s.runner.Done():
		case <-time.After(wsCloseTimeout):
		}
	}
}

func (s *examStream) readLoop(ctx context.Context) {
	for {
		var msg ws.ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("stream closed unexpectedly")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch msg.Action {
		case ws.ActionPing:
			s.send(ws.ServerMessage{Event: ws.EventPong})
		case ws.ActionStart:
			s.handleStart(ctx)
		case ws.ActionSaveAnswer:
			s.handleSaveAnswer(msg.Answer)
		case ws.ActionGoTo:
			s.handleGoTo(msg.Index)
		case ws.ActionNext:
			s.navigate(s.session.Next)
		case ws.ActionPrevious:
			s.navigate(s.session.Previous)
		case ws.ActionRequestSubmit:
			s.handleRequestSubmit()
		case ws.ActionSubmit:
			s.handleSubmit(ctx)
			if s.session.State() == attempt.StateSubmitted {
				return
			}
		default:
			s.sendError(response.ErrValidation)
		}
	}
}

func (s *examStream) writeLoop(done chan<- struct{}) {
	defer close(done)
	for msg := range s.out {
		s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := s.conn.WriteJSON(msg); err != nil {
			s.log.Debug().Err(err).Msg("stream write failed")
			return
		}
	}
}

func (s *examStream) handleStart(ctx context.Context) {
	if err := s.session.Start(ctx); err != nil {
		s.sendError(streamErrCode(err))
		return
	}

	// Seed answers a previous connection already autosaved.
	drafts, err := s.handler.taking.DraftAnswers(ctx, s.examID, s.student)
	if err != nil {
		s.log.Warn().Err(err).Msg("draft restore failed")
	} else if len(drafts) > 0 {
		_ = s.session.Restore(drafts)
	}

	s.runner = attempt.NewRunner(s.session, s.log)
	s.runner.OnTick = func(remaining int) {
		s.send(ws.ServerMessage{Event: ws.EventTick, Data: ws.TickData{RemainingSeconds: remaining}})
	}
	go func() {
		s.runner.Run(ctx)
		s.notifySettled()
	}()

	s.send(ws.ServerMessage{Event: ws.EventStarted, Data: gin.H{
		"submission_id":     s.session.SubmissionID(),
		"remaining_seconds": s.session.RemainingSeconds(),
		"restored_answers":  len(drafts),
	}})
}

func (s *examStream) handleSaveAnswer(ans *model.StudentAnswer) {
	if ans == nil {
		s.sendError(response.ErrValidation)
		return
	}
	if err := s.session.SetAnswer(*ans); err != nil {
		s.sendError(streamErrCode(err))
		return
	}
	s.send(ws.ServerMessage{Event: ws.EventSaved, Data: gin.H{"question_id": ans.QuestionID}})
}

func (s *examStream) handleGoTo(index *int) {
	if index == nil {
		s.sendError(response.ErrValidation)
		return
	}
	if err := s.session.GoTo(*index); err != nil {
		s.sendError(streamErrCode(err))
		return
	}
	s.sendPosition()
}

func (s *examStream) navigate(step func() error) {
	if err := step(); err != nil {
		s.sendError(streamErrCode(err))
		return
	}
	s.sendPosition()
}

func (s *examStream) handleRequestSubmit() {
	summary, err := s.session.RequestSubmit()
	if err != nil {
		s.sendError(streamErrCode(err))
		return
	}
	s.send(ws.ServerMessage{Event: ws.EventSummary, Data: summary})
}

func (s *examStream) handleSubmit(ctx context.Context) {
	result, err := s.session.Submit(ctx)
	if err != nil {
		s.sendError(streamErrCode(err))
		return
	}
	s.send(ws.ServerMessage{Event: ws.EventSubmitted, Data: result})
}

// notifySettled reports the outcome of a deadline-forced submit after the
// runner exits. Manual submits already sent their own frame.
func (s *examStream) notifySettled() {
	switch s.session.State() {
	case attempt.StateSubmitted:
		if result := s.session.Result(); result != nil && result.AutoSubmitted {
			s.send(ws.ServerMessage{Event: ws.EventExpired, Data: result})
		}
	case attempt.StateSubmitting:
		if s.session.ForcedSubmitErr() != nil {
			s.send(ws.ServerMessage{
				Event: ws.EventExpired,
				Error: &ws.StreamError{
					Code:    response.ErrInternal,
					Message: "Time expired but the submission could not be stored. Contact your teacher.",
				},
			})
		}
	}
}

func (s *examStream) sendPosition() {
	s.send(ws.ServerMessage{Event: ws.EventPosition, Data: ws.PositionData{Index: s.session.CurrentIndex()}})
}

func (s *examStream) send(msg ws.ServerMessage) {
	defer func() {
		// The out channel closes when the reader exits; a late tick or
		// settle notification must not crash the stream.
		_ = recover()
	}()
	select {
	case s.out <- msg:
	default:
		s.log.Warn().Str("event", string(msg.Event)).Msg("stream send buffer full, frame dropped")
	}
}

func (s *examStream) sendError(code response.ErrCode) {
	s.send(ws.ServerMessage{
		Event: ws.EventError,
		Error: &ws.StreamError{Code: code, Message: response.GetMessage(code)},
	})
}

// streamErrCode maps session and taking errors onto the REST error catalogue.
func streamErrCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, attempt.ErrAlreadyStarted):
		return response.ErrConflict
	case errors.Is(err, attempt.ErrNotActive):
		return response.ErrNotStarted
	case errors.Is(err, attempt.ErrUnknownQuestion), errors.Is(err, attempt.ErrIndexOutOfRange):
		return response.ErrValidation
	case errors.Is(err, attempt.ErrSubmitInProgress):
		return response.ErrConflict
	case errors.Is(err, service.ErrAlreadySubmitted):
		return response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrExamClosed):
		return response.ErrExamClosed
	case errors.Is(err, service.ErrExamNotOpen):
		return response.ErrExamNotOpen
	case errors.Is(err, service.ErrNotEnrolled):
		return response.ErrNotEnrolled
	default:
		return response.ErrInternal
	}
}
