package stream

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/netsweep/internal/scanning"
)

const writeWait = 10 * time.Second

// WebSocketSink writes each event as one JSON text message.
type WebSocketSink struct {
	conn *websocket.Conn
}

// NewWebSocketSink wraps an upgraded connection.
func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn}
}

// Send writes event as a JSON message.
func (s *WebSocketSink) Send(event scanning.Event) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(event)
}

// Close sends a normal closure frame with reason.
func (s *WebSocketSink) Close(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
