package signaling

import (
	"log/slog"

	"github.com/openmeet/signaling/internal/metrics"
)

// Router resolves targets against the registries and moves frames to
// transports. Relayed bodies are never inspected; only the envelope's routing
// fields are read.
type Router struct {
	conns   *ConnectionRegistry
	rooms   *RoomRegistry
	metrics metrics.Sink
	log     *slog.Logger

	// publish forwards a broadcast frame to sibling instances. Nil when
	// running single-instance.
	publish func(roomID, exclude string, frame []byte)
}

func NewRouter(conns *ConnectionRegistry, rooms *RoomRegistry, sink metrics.Sink, log *slog.Logger) *Router {
	return &Router{
		conns:   conns,
		rooms:   rooms,
		metrics: sink,
		log:     log,
	}
}

// SetPublisher installs the cross-instance fan-out hook. Must be called
// before the event loop starts.
func (r *Router) SetPublisher(publish func(roomID, exclude string, frame []byte)) {
	r.publish = publish
}

// Unicast sends one envelope to one connection. An unknown target is dropped
// without notifying the sender: targets disappear naturally between a peer
// learning an id and using it, and that is not the sender's error.
func (r *Router) Unicast(targetID string, v any) bool {
	conn, ok := r.conns.Lookup(targetID)
	if !ok {
		r.metrics.Inc(metrics.DropReasonNoTarget)
		r.log.Debug("dropping frame for unknown target", "target_id", targetID)
		return false
	}
	frame, err := EncodeFrame(v)
	if err != nil {
		r.log.Error("encoding outbound frame", "err", err)
		return false
	}
	r.deliver(conn, frame)
	return true
}

// Broadcast sends one envelope to every room member except excludeID, locally
// and to sibling instances.
func (r *Router) Broadcast(roomID, excludeID string, v any) {
	frame, err := EncodeFrame(v)
	if err != nil {
		r.log.Error("encoding outbound frame", "err", err)
		return
	}
	r.BroadcastFrame(roomID, excludeID, frame)
	if r.publish != nil {
		r.publish(roomID, excludeID, frame)
	}
}

// Publish forwards an envelope to sibling instances only. Used when the last
// local member of a room leaves: the room is gone here but may still have
// members elsewhere.
func (r *Router) Publish(roomID, excludeID string, v any) {
	if r.publish == nil {
		return
	}
	frame, err := EncodeFrame(v)
	if err != nil {
		r.log.Error("encoding outbound frame", "err", err)
		return
	}
	r.publish(roomID, excludeID, frame)
}

// BroadcastFrame delivers an already-marshaled frame to local room members
// only. Bus deliveries enter here so they are never re-published.
func (r *Router) BroadcastFrame(roomID, excludeID string, frame []byte) {
	room, ok := r.rooms.Lookup(roomID)
	if !ok {
		return
	}
	for id := range room.members {
		if id == excludeID {
			continue
		}
		conn, ok := r.conns.Lookup(id)
		if !ok {
			// Registry divergence would be a lifecycle bug.
			r.log.Error("room member missing from connection registry", "room_id", roomID, "connection_id", id)
			continue
		}
		r.deliver(conn, frame)
	}
}

// Relay routes one negotiation or data envelope from its sender.
func (r *Router) Relay(sender *Connection, msg Inbound) {
	switch msg.Kind {
	case KindOffer:
		r.relayTo(msg.TargetID, Relay{Kind: KindOffer, Payload: msg.SessionDescription, SourceID: sender.ID})
	case KindAnswer:
		r.relayTo(msg.TargetID, Relay{Kind: KindAnswer, Payload: msg.SessionDescription, SourceID: sender.ID})
	case KindCandidate:
		r.relayTo(msg.TargetID, Relay{Kind: KindCandidate, Payload: msg.ICECandidate, SourceID: sender.ID})
	case KindMessage:
		out := Relay{Kind: KindMessage, Payload: msg.Payload, SourceID: sender.ID}
		if msg.Broadcast {
			if sender.RoomID == "" {
				r.metrics.Inc(metrics.DropReasonNoTarget)
				r.log.Debug("dropping broadcast from connection outside any room", "connection_id", sender.ID)
				return
			}
			r.Broadcast(sender.RoomID, sender.ID, out)
			r.metrics.Inc(metrics.RelayedTotal)
			return
		}
		r.relayTo(msg.TargetID, out)
	}
}

func (r *Router) relayTo(targetID string, out Relay) {
	if r.Unicast(targetID, out) {
		r.metrics.Inc(metrics.RelayedTotal)
	}
}

func (r *Router) deliver(conn *Connection, frame []byte) {
	if !conn.sender.Send(frame) {
		r.metrics.Inc(metrics.DropReasonQueueFull)
		r.log.Warn("dropping frame, send queue full", "connection_id", conn.ID)
	}
}
