package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/drorm/vmpilot/pkg/stream"
)

// TurnRequest is one conversation turn submitted over the socket
type TurnRequest struct {
	ID      string `json:"id,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	Content string `json:"content"`
}

// Event types pushed to clients
const (
	EventUnit  = "unit"
	EventDone  = "done"
	EventError = "error"
)

// EventMessage is a server-initiated event carrying one output unit or a
// lifecycle signal. Seq is strictly increasing across all events.
type EventMessage struct {
	Type      string       `json:"type"`
	Seq       int64        `json:"seq,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Unit      *stream.Unit `json:"unit,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	IPAddress   string

	writeMu sync.Mutex
}

// WriteJSON writes a message to the client. Gorilla connections allow only
// one concurrent writer, so writes are serialized here.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}
