package signaling

import (
	"fmt"
	"log/slog"
)

// Sender delivers one marshaled frame to a connection's transport. It must
// never block; a false return means the frame was dropped.
type Sender interface {
	Send(frame []byte) bool
}

// Connection is the identity and routing state of one live transport
// connection. RoomID is empty until the connection joins a room.
type Connection struct {
	ID          string
	PeerID      string
	DisplayName string
	RoomID      string

	sender Sender
}

// NewConnection wraps a transport handle with a fresh identity.
func NewConnection(id string, sender Sender) *Connection {
	return &Connection{ID: id, sender: sender}
}

// ConnectionRegistry indexes live connections by id. It holds no locks: all
// access goes through the core's event loop.
type ConnectionRegistry struct {
	log   *slog.Logger
	conns map[string]*Connection
}

func NewConnectionRegistry(log *slog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		log:   log,
		conns: make(map[string]*Connection),
	}
}

// Register adds a connection. Registering an id that is already present is a
// bug in the transport layer; the existing entry is preserved.
func (r *ConnectionRegistry) Register(conn *Connection) error {
	if _, ok := r.conns[conn.ID]; ok {
		r.log.Error("connection already registered", "connection_id", conn.ID)
		return fmt.Errorf("connection %q already registered", conn.ID)
	}
	r.conns[conn.ID] = conn
	return nil
}

func (r *ConnectionRegistry) Lookup(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// SetRoom records which room a connection belongs to. An empty roomID clears
// the association.
func (r *ConnectionRegistry) SetRoom(id, roomID string) {
	if conn, ok := r.conns[id]; ok {
		conn.RoomID = roomID
	}
}

// Remove drops a connection. Removing an unknown id is a no-op.
func (r *ConnectionRegistry) Remove(id string) {
	delete(r.conns, id)
}

func (r *ConnectionRegistry) Count() int {
	return len(r.conns)
}
