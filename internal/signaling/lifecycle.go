package signaling

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/openmeet/signaling/internal/metrics"
)

// Lifecycle owns every mutation of the two registries. Join, leave,
// disconnect and room teardown each run to completion inside a single event,
// so the connection's room pointer and the room's member set can never be
// observed disagreeing.
type Lifecycle struct {
	conns   *ConnectionRegistry
	rooms   *RoomRegistry
	router  *Router
	metrics metrics.Sink
	log     *slog.Logger
}

func NewLifecycle(conns *ConnectionRegistry, rooms *RoomRegistry, router *Router, sink metrics.Sink, log *slog.Logger) *Lifecycle {
	return &Lifecycle{
		conns:   conns,
		rooms:   rooms,
		router:  router,
		metrics: sink,
		log:     log,
	}
}

// Connect registers a fresh connection and acknowledges it with its assigned
// id. The connected frame is the first thing a client ever receives.
func (l *Lifecycle) Connect(conn *Connection) {
	if err := l.conns.Register(conn); err != nil {
		return
	}
	l.metrics.Inc(metrics.ActiveConnections)
	l.metrics.Inc(metrics.ConnectionsTotal)
	l.log.Info("connection opened", "connection_id", conn.ID)

	l.router.Unicast(conn.ID, Connected{Kind: KindConnected, ConnectionID: conn.ID})
}

// Join places a connection in a room, creating the room if needed. A join
// while already in another room leaves that room first; a repeat join of the
// current room only re-sends the roster.
func (l *Lifecycle) Join(conn *Connection, msg Inbound) {
	roomID := msg.RoomID
	if roomID == "" {
		roomID = uuid.NewString()
	}

	if conn.RoomID == roomID {
		l.router.Unicast(conn.ID, l.roster(conn, roomID))
		return
	}
	if conn.RoomID != "" {
		l.Leave(conn)
	}

	if msg.PeerID != "" {
		conn.PeerID = msg.PeerID
	} else {
		conn.PeerID = conn.ID
	}
	if msg.DisplayName != "" {
		conn.DisplayName = msg.DisplayName
	} else {
		conn.DisplayName = defaultDisplayName(conn.ID)
	}

	_, created := l.rooms.EnsureRoom(roomID)
	if created {
		l.metrics.Inc(metrics.ActiveRooms)
	}
	l.rooms.AddMember(roomID, conn.ID)
	l.conns.SetRoom(conn.ID, roomID)
	l.metrics.Inc(metrics.JoinsTotal)
	l.log.Info("joined room", "connection_id", conn.ID, "room_id", roomID, "created", created)

	l.router.Unicast(conn.ID, l.roster(conn, roomID))
	l.router.Broadcast(roomID, conn.ID, UserJoined{
		Kind:   KindUserJoined,
		RoomID: roomID,
		User:   Member{ID: conn.ID, DisplayName: conn.DisplayName},
	})
}

// roster builds the room_joined frame: the current members except the joiner
// itself.
func (l *Lifecycle) roster(conn *Connection, roomID string) RoomJoined {
	out := RoomJoined{
		Kind:    KindRoomJoined,
		RoomID:  roomID,
		SelfID:  conn.ID,
		Members: make([]Member, 0),
	}
	room, ok := l.rooms.Lookup(roomID)
	if !ok {
		return out
	}
	for _, id := range room.MemberIDs() {
		if id == conn.ID {
			continue
		}
		member, ok := l.conns.Lookup(id)
		if !ok {
			continue
		}
		out.Members = append(out.Members, Member{ID: member.ID, DisplayName: member.DisplayName})
	}
	return out
}

// Leave removes a connection from its room, if any. The remaining members
// are told after both registries are consistent again.
func (l *Lifecycle) Leave(conn *Connection) {
	roomID := conn.RoomID
	if roomID == "" {
		return
	}

	_, deleted := l.rooms.RemoveMember(roomID, conn.ID)
	l.conns.SetRoom(conn.ID, "")
	l.metrics.Inc(metrics.LeavesTotal)
	left := UserLeft{
		Kind:         KindUserLeft,
		RoomID:       roomID,
		ConnectionID: conn.ID,
	}
	if deleted {
		l.metrics.Dec(metrics.ActiveRooms)
		l.metrics.Inc(metrics.RoomsClosedTotal)
		l.log.Info("room emptied", "room_id", roomID)
		// Sibling instances may still hold members of this room.
		l.router.Publish(roomID, conn.ID, left)
		return
	}

	l.router.Broadcast(roomID, conn.ID, left)
}

// Disconnect is the transport-close path. It behaves exactly like an explicit
// leave followed by deregistration; peers cannot tell the two apart.
func (l *Lifecycle) Disconnect(connID string) {
	conn, ok := l.conns.Lookup(connID)
	if !ok {
		return
	}
	l.Leave(conn)
	l.conns.Remove(connID)
	l.metrics.Dec(metrics.ActiveConnections)
	l.log.Info("connection closed", "connection_id", connID)
}

// CloseRoom force-closes a room: every member is notified, detached, and the
// room is dropped. Reports whether the room existed.
//
// Only local registries are cleared. Sibling instances receive the
// room_closed frame for their members but keep their own memberships; a
// cross-instance teardown would need a control envelope on the bus.
func (l *Lifecycle) CloseRoom(roomID string) bool {
	room, ok := l.rooms.Lookup(roomID)
	if !ok {
		return false
	}

	l.router.Broadcast(roomID, "", RoomClosed{Kind: KindRoomClosed, RoomID: roomID})
	for _, id := range room.MemberIDs() {
		l.conns.SetRoom(id, "")
	}
	l.rooms.Drop(roomID)
	l.metrics.Dec(metrics.ActiveRooms)
	l.metrics.Inc(metrics.RoomsClosedTotal)
	l.log.Info("room closed by admin", "room_id", roomID, "members", room.MemberCount())
	return true
}

// ReserveRoomID returns a room id for later joins. Rooms only materialize
// when the first member arrives, so nothing is registered here; an empty
// request gets a generated id.
func (l *Lifecycle) ReserveRoomID(roomID string) string {
	if roomID == "" {
		return uuid.NewString()
	}
	return roomID
}

func defaultDisplayName(connID string) string {
	if len(connID) > 8 {
		connID = connID[:8]
	}
	return "peer-" + connID
}
