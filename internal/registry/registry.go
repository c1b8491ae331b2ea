// internal/registry/registry.go
package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrUnknownConnection is returned when a connection id was never registered or already detached.
var ErrUnknownConnection = errors.New("registry: unknown connection")

// Registry maps live connections to users and rooms. A connection is
// attached to at most one room at a time.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Connection
	rooms  map[string]map[uuid.UUID]*Connection
	seq    uint64
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*Connection),
		rooms:  make(map[string]map[uuid.UUID]*Connection),
		logger: logger,
	}
}

// Register makes conn addressable by its id.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[conn.ID]; exists {
		r.logger.WithField("conn", conn.ID).Warn("registry: connection registered twice")
		return
	}
	r.conns[conn.ID] = conn
}

// Lookup returns the registered connection.
func (r *Registry) Lookup(connID uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// AttachToRoom moves the connection into room, leaving any previous room.
func (r *Registry) AttachToRoom(connID uuid.UUID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	r.leaveRoomLocked(c)
	members := r.rooms[room]
	if members == nil {
		members = make(map[uuid.UUID]*Connection)
		r.rooms[room] = members
	}
	r.seq++
	c.room = room
	c.attachNo = r.seq
	members[c.ID] = c
	return nil
}

// LeaveRoom detaches the connection from its room but keeps it registered.
func (r *Registry) LeaveRoom(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		r.leaveRoomLocked(c)
	}
}

// Detach forgets the connection entirely and returns the room it was in.
func (r *Registry) Detach(connID uuid.UUID) (*Connection, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil, "", false
	}
	room := c.room
	r.leaveRoomLocked(c)
	delete(r.conns, connID)
	return c, room, true
}

// Room returns the room the connection is attached to, or "".
func (r *Registry) Room(connID uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conns[connID]; ok {
		return c.room
	}
	return ""
}

// UserInRoom reports whether any connection of userID is attached to room.
func (r *Registry) UserInRoom(room string, userID uuid.UUID) bool {
	return r.ConnectionForUser(room, userID) != uuid.Nil
}

// ConnectionForUser returns the most recently attached connection of userID in room, or uuid.Nil.
func (r *Registry) ConnectionForUser(room string, userID uuid.UUID) uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Connection
	for _, c := range r.rooms[room] {
		if c.UserID != userID {
			continue
		}
		if best == nil || c.attachNo > best.attachNo {
			best = c
		}
	}
	if best == nil {
		return uuid.Nil
	}
	return best.ID
}

// Send delivers ev to a single connection.
func (r *Registry) Send(connID uuid.UUID, ev models.Event) bool {
	c, ok := r.Lookup(connID)
	if !ok {
		return false
	}
	if !c.Write(ev) {
		r.evict(c, ev.Type)
		return false
	}
	return true
}

// Broadcast delivers ev to every connection attached to room at call time and
// returns how many accepted it. A connection whose queue is full is evicted so
// that it resynchronizes on reconnect instead of silently missing events.
func (r *Registry) Broadcast(room string, ev models.Event) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Write(ev) {
			delivered++
			continue
		}
		r.evict(c, ev.Type)
	}
	return delivered
}

func (r *Registry) evict(c *Connection, dropped models.EventType) {
	r.logger.WithFields(logrus.Fields{
		"conn":  c.ID,
		"user":  c.UserID,
		"event": dropped,
	}).Warn("registry: outbound queue full, closing connection")
	c.Cancel()
}

// leaveRoomLocked assumes the write lock is held.
func (r *Registry) leaveRoomLocked(c *Connection) {
	if c.room == "" {
		return
	}
	if members := r.rooms[c.room]; members != nil {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(r.rooms, c.room)
		}
	}
	c.room = ""
}
