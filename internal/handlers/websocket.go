package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/logging"
	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/services"
	"flowbase/internal/store"
)

const (
	liveSendBuffer   = 64
	liveReadDeadline = 90 * time.Second
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 10 * time.Second
)

// LiveHandler serves the live channel. Each connection is joined to its
// user room on connect and may subscribe to rooms of projects it belongs to.
type LiveHandler struct {
	hub     *services.LiveHub
	members middleware.MemberFinder
}

// NewLiveHandler creates a new live channel handler
func NewLiveHandler(hub *services.LiveHub, members middleware.MemberFinder) *LiveHandler {
	return &LiveHandler{hub: hub, members: members}
}

// Handle handles a new WebSocket connection
func (h *LiveHandler) Handle(c *websocket.Conn) {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	conn := models.NewLiveConnection(uuid.New().String(), userID, c, liveSendBuffer)
	logger := logging.WithConnection(conn.ConnID, userID)

	done := make(chan struct{})
	h.hub.Register(conn)
	logger.Info("live connection opened")
	defer func() {
		close(done)
		h.hub.Unregister(conn.ConnID)
		logger.Info("live connection closed", "duration", time.Since(conn.CreatedAt).String())
	}()

	c.SetReadDeadline(time.Now().Add(liveReadDeadline))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(liveReadDeadline))
		return nil
	})

	go h.pingLoop(conn, done)
	go h.writeLoop(conn)

	conn.SafeSend(models.ServerMessage{
		Type: models.EventConnected,
		Room: services.UserRoom(userID),
	})

	h.readLoop(conn)
}

// pingLoop sends periodic control pings so idle connections stay open
func (h *LiveHandler) pingLoop(conn *models.LiveConnection, done <-chan struct{}) {
	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WritePing(liveWriteTimeout); err != nil {
				log.Printf("⚠️ Ping failed for %s: %v", conn.ConnID, err)
				return
			}
		}
	}
}

// readLoop handles incoming frames until the client goes away
func (h *LiveHandler) readLoop(conn *models.LiveConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in live readLoop: %v", r)
		}
	}()

	for {
		_, raw, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("❌ Live read error for %s: %v", conn.ConnID, err)
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(liveReadDeadline))

		var msg models.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			conn.SafeSend(models.ServerMessage{Type: models.EventError, Message: "Invalid message format"})
			continue
		}
		h.dispatch(context.Background(), conn, msg)
	}
}

// dispatch applies one client frame to the connection's subscriptions
func (h *LiveHandler) dispatch(ctx context.Context, conn *models.LiveConnection, msg models.ClientMessage) {
	switch msg.Type {
	case models.EventPing:
		conn.SafeSend(models.ServerMessage{Type: models.EventPong})

	case models.EventJoinUser:
		if msg.UserID != conn.UserID {
			conn.SafeSend(models.ServerMessage{Type: models.EventError, Message: "You can only join your own room"})
			return
		}
		room := services.UserRoom(conn.UserID)
		if err := h.hub.Join(conn.ConnID, room); err != nil {
			log.Printf("⚠️ Join %s failed: %v", room, err)
			return
		}
		conn.SafeSend(models.ServerMessage{Type: models.EventJoinUser, Room: room})

	case models.EventJoinProject:
		if err := h.authorizeProject(ctx, conn.UserID, msg.ProjectID); err != nil {
			conn.SafeSend(models.ServerMessage{Type: models.EventError, Message: err.Error()})
			return
		}
		room := services.ProjectRoom(msg.ProjectID)
		if err := h.hub.Join(conn.ConnID, room); err != nil {
			log.Printf("⚠️ Join %s failed: %v", room, err)
			return
		}
		conn.SafeSend(models.ServerMessage{Type: models.EventJoinProject, Room: room})

	case models.EventLeaveProject:
		room := services.ProjectRoom(msg.ProjectID)
		h.hub.Leave(conn.ConnID, room)
		conn.SafeSend(models.ServerMessage{Type: models.EventLeaveProject, Room: room})

	default:
		conn.SafeSend(models.ServerMessage{Type: models.EventError, Message: "Unknown message type"})
	}
}

var errNotProjectMember = errors.New(middleware.MsgNotProjectMember)

func (h *LiveHandler) authorizeProject(ctx context.Context, userHex, projectHex string) error {
	projectID, err := primitive.ObjectIDFromHex(projectHex)
	if err != nil {
		return errors.New("Invalid project id")
	}
	userID, err := primitive.ObjectIDFromHex(userHex)
	if err != nil {
		return errNotProjectMember
	}
	if _, err := h.members.FindMember(ctx, projectID, userID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("❌ Membership lookup failed for project %s: %v", projectHex, err)
		}
		return errNotProjectMember
	}
	return nil
}

// writeLoop drains the send buffer onto the socket
func (h *LiveHandler) writeLoop(conn *models.LiveConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in live writeLoop: %v", r)
		}
	}()

	for msg := range conn.WriteChan {
		if err := conn.WriteJSON(msg, liveWriteTimeout); err != nil {
			log.Printf("❌ Live write error for %s: %v", conn.ConnID, err)
			// unblocks readLoop so the connection is unregistered
			conn.Conn.Close()
			return
		}
	}
}
