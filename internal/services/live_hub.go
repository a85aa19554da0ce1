package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"flowbase/internal/models"
)

// Relay mirrors live events to other server instances
type Relay interface {
	Relay(ctx context.Context, room string, msg models.ServerMessage) error
}

// UserRoom is the room every connection of a user joins on connect
func UserRoom(userID string) string {
	return "user:" + userID
}

// ProjectRoom is the room joined while a client views a project
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

// LiveHub is the room registry of the live channel: room name -> set of connections.
// Delivery is at-most-once; a connection whose send buffer is full misses the event.
type LiveHub struct {
	mu          sync.RWMutex
	connections map[string]*models.LiveConnection
	rooms       map[string]map[string]*models.LiveConnection // room -> connID -> conn
	joined      map[string]map[string]struct{}               // connID -> rooms

	relay   Relay
	metrics *Metrics
}

// NewLiveHub creates an empty room registry
func NewLiveHub(metrics *Metrics) *LiveHub {
	return &LiveHub{
		connections: make(map[string]*models.LiveConnection),
		rooms:       make(map[string]map[string]*models.LiveConnection),
		joined:      make(map[string]map[string]struct{}),
		metrics:     metrics,
	}
}

// SetRelay enables cross-instance delivery
func (h *LiveHub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Register adds a connection and joins it to its user room
func (h *LiveHub) Register(conn *models.LiveConnection) {
	h.mu.Lock()
	h.connections[conn.ConnID] = conn
	h.joinLocked(conn, UserRoom(conn.UserID))
	total := len(h.connections)
	h.mu.Unlock()

	h.metrics.connectionOpened()
	log.Printf("✅ Live connection added: %s (Total: %d)", conn.ConnID, total)
}

// Join adds a registered connection to a room
func (h *LiveHub) Join(connID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connID]
	if !ok {
		return fmt.Errorf("connection %s is not registered", connID)
	}
	h.joinLocked(conn, room)
	return nil
}

func (h *LiveHub) joinLocked(conn *models.LiveConnection, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*models.LiveConnection)
		h.rooms[room] = members
	}
	members[conn.ConnID] = conn

	rooms, ok := h.joined[conn.ConnID]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[conn.ConnID] = rooms
	}
	rooms[room] = struct{}{}
}

// Leave removes a connection from a room
func (h *LiveHub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, room)
}

func (h *LiveHub) leaveLocked(connID, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.joined[connID]; ok {
		delete(rooms, room)
	}
}

// Unregister removes the connection from every room and closes its send buffer
func (h *LiveHub) Unregister(connID string) {
	h.mu.Lock()
	conn, ok := h.connections[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	for room := range h.joined[connID] {
		h.leaveLocked(connID, room)
	}
	delete(h.joined, connID)
	delete(h.connections, connID)
	total := len(h.connections)
	h.mu.Unlock()

	conn.Close()
	h.metrics.connectionClosed()
	log.Printf("❌ Live connection removed: %s (Total: %d)", connID, total)
}

// Publish delivers msg to the local members of room and relays it to other instances.
// It returns the number of local connections that accepted the message.
func (h *LiveHub) Publish(ctx context.Context, room string, msg models.ServerMessage) int {
	delivered := h.DeliverLocal(room, msg)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Relay(ctx, room, msg); err != nil {
			log.Printf("⚠️  Live relay failed for room %s: %v", room, err)
		}
	}
	return delivered
}

// DeliverLocal sends msg to the connections of this instance only
func (h *LiveHub) DeliverLocal(room string, msg models.ServerMessage) int {
	msg.Room = room

	h.mu.RLock()
	targets := make([]*models.LiveConnection, 0, len(h.rooms[room]))
	for _, conn := range h.rooms[room] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		ok := conn.SafeSend(msg)
		h.metrics.liveEvent(msg.Type, ok)
		if ok {
			delivered++
		}
	}
	return delivered
}

// RoomSize returns the number of local connections in room
func (h *LiveHub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Count returns the number of registered connections
func (h *LiveHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
