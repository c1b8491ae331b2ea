// internal/registry/connection.go
package registry

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
)

// Connection is a single live socket of an authenticated user.
type Connection struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	OutChan chan models.Event

	// Cancel stops the socket's pumps. The registry calls it when the
	// connection can no longer keep up with its room.
	Cancel func()

	room     string // guarded by Registry.mu
	attachNo uint64 // guarded by Registry.mu
}

// NewConnection allocates a connection with a buffered outbound queue.
func NewConnection(userID uuid.UUID, buffer int, cancel func()) *Connection {
	if buffer <= 0 {
		buffer = 1
	}
	if cancel == nil {
		cancel = func() {}
	}
	return &Connection{
		ID:      uuid.New(),
		UserID:  userID,
		OutChan: make(chan models.Event, buffer),
		Cancel:  cancel,
	}
}

// Write queues ev without blocking. It reports false when the queue is full.
func (c *Connection) Write(ev models.Event) bool {
	select {
	case c.OutChan <- ev:
		return true
	default:
		return false
	}
}

// WriteError queues an error event carrying msg.
func (c *Connection) WriteError(msg string) bool {
	return c.Write(models.Event{Type: models.EventError, Payload: msg})
}
