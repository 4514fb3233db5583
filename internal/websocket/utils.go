package websocket

import (
	"time"

	"github.com/examly/examly-backend/internal/response"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WriteError sends an error frame using the REST error catalogue. Safe to
// call only from the connection's writer.
func WriteError(conn *websocket.Conn, code response.ErrCode) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ServerMessage{
		Event: EventError,
		Error: &StreamError{Code: code, Message: response.GetMessage(code)},
	})
}
