package websocket

import (
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/response"
)

// Action enumerates the client-to-server messages of the exam stream.
type Action string

const (
	ActionStart         Action = "start"
	ActionSaveAnswer    Action = "save_answer"
	ActionGoTo          Action = "goto"
	ActionNext          Action = "next"
	ActionPrevious      Action = "previous"
	ActionRequestSubmit Action = "request_submit"
	ActionSubmit        Action = "submit"
	ActionPing          Action = "ping"
)

// Event enumerates the server-to-client messages of the exam stream.
type Event string

const (
	EventStarted   Event = "started"
	EventTick      Event = "tick"
	EventSaved     Event = "saved"
	EventPosition  Event = "position"
	EventSummary   Event = "summary"
	EventSubmitted Event = "submitted"
	EventExpired   Event = "expired"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// ClientMessage is one inbound exam stream frame.
type ClientMessage struct {
	Action Action               `json:"action"`
	Answer *model.StudentAnswer `json:"answer,omitempty"`
	// Index is the target question for goto.
	Index *int `json:"index,omitempty"`
}

// ServerMessage is one outbound exam stream frame.
type ServerMessage struct {
	Event Event        `json:"event"`
	Data  interface{}  `json:"data,omitempty"`
	Error *StreamError `json:"error,omitempty"`
}

// StreamError mirrors the REST error body on the stream.
type StreamError struct {
	Code    response.ErrCode `json:"code"`
	Message string           `json:"message"`
}

// TickData is the payload of the countdown event.
type TickData struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

// PositionData is the payload of the navigation event.
type PositionData struct {
	Index int `json:"index"`
}
