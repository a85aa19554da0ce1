package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Live channel event types
const (
	EventJoinUser             = "join_user"
	EventJoinProject          = "join_project"
	EventLeaveProject         = "leave_project"
	EventPing                 = "ping"
	EventPong                 = "pong"
	EventConnected            = "connected"
	EventError                = "error"
	EventNotificationReceived = "notification_received"
	EventProjectDataUpdated   = "project_data_updated"
)

// Data change kinds carried by project_data_updated
const (
	DataProject  = "project"
	DataMembers  = "members"
	DataTasks    = "tasks"
	DataSubtasks = "subtasks"
	DataNotes    = "notes"
)

// ClientMessage represents a frame sent by the client
type ClientMessage struct {
	Type      string `json:"type"` // "join_user", "join_project", "leave_project", "ping"
	UserID    string `json:"userId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// ServerMessage represents a frame pushed to the client
type ServerMessage struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message,omitempty"`
}

// DataChanged is the payload of project_data_updated
type DataChanged struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
}

// LiveConnection represents a single live-channel connection
type LiveConnection struct {
	ConnID    string
	UserID    string
	Conn      *websocket.Conn // nil for in-process subscribers
	CreatedAt time.Time
	WriteChan chan ServerMessage

	// WriteMu serializes socket writes. It is never held by SafeSend.
	WriteMu sync.Mutex

	mu     sync.Mutex // guards closed and WriteChan
	closed bool
}

// NewLiveConnection creates a connection with a bounded send buffer
func NewLiveConnection(connID, userID string, conn *websocket.Conn, buffer int) *LiveConnection {
	return &LiveConnection{
		ConnID:    connID,
		UserID:    userID,
		Conn:      conn,
		CreatedAt: time.Now(),
		WriteChan: make(chan ServerMessage, buffer),
	}
}

// SafeSend queues a message without blocking. It returns false when the
// connection is closed or its buffer is full; the message is dropped.
func (lc *LiveConnection) SafeSend(msg ServerMessage) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed {
		return false
	}
	select {
	case lc.WriteChan <- msg:
		return true
	default:
		return false
	}
}

// WriteJSON writes msg to the socket under WriteMu with a write deadline
func (lc *LiveConnection) WriteJSON(msg ServerMessage, timeout time.Duration) error {
	lc.WriteMu.Lock()
	defer lc.WriteMu.Unlock()
	if err := lc.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return lc.Conn.WriteJSON(msg)
}

// WritePing sends a control ping under WriteMu
func (lc *LiveConnection) WritePing(timeout time.Duration) error {
	lc.WriteMu.Lock()
	defer lc.WriteMu.Unlock()
	return lc.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(timeout))
}

// Close marks the connection closed and closes its write channel
func (lc *LiveConnection) Close() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed {
		return
	}
	lc.closed = true
	close(lc.WriteChan)
}

// IsClosed returns true if the connection has been closed
func (lc *LiveConnection) IsClosed() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.closed
}
