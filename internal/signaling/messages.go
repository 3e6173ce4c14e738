package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind tags both inbound and outbound signaling envelopes.
type Kind string

// Inbound kinds.
const (
	KindJoin      Kind = "join"
	KindLeave     Kind = "leave"
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
	KindMessage   Kind = "message"
)

// Outbound-only kinds.
const (
	KindConnected  Kind = "connected"
	KindRoomJoined Kind = "room_joined"
	KindUserJoined Kind = "user_joined"
	KindUserLeft   Kind = "user_left"
	KindRoomClosed Kind = "room_closed"
)

// Inbound is the client-to-server control envelope. The negotiation bodies
// (sessionDescription, iceCandidate, payload) are opaque to the server; only
// the routing fields are ever inspected.
type Inbound struct {
	Kind        Kind   `json:"kind"`
	RoomID      string `json:"roomId,omitempty"`
	PeerID      string `json:"peerId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	TargetID    string `json:"targetId,omitempty"`
	Broadcast   bool   `json:"broadcast,omitempty"`

	SessionDescription json.RawMessage `json:"sessionDescription,omitempty"`
	ICECandidate       json.RawMessage `json:"iceCandidate,omitempty"`
	Payload            json.RawMessage `json:"payload,omitempty"`
}

// ParseInbound decodes and validates one inbound envelope. Unknown fields and
// trailing data are rejected so malformed clients fail loudly at the edge
// instead of surfacing as routing oddities.
func ParseInbound(data []byte) (Inbound, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg Inbound
	if err := dec.Decode(&msg); err != nil {
		return Inbound{}, err
	}
	if err := msg.validate(); err != nil {
		return Inbound{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Inbound{}, fmt.Errorf("unexpected trailing data")
	}
	return msg, nil
}

func (m Inbound) validate() error {
	switch m.Kind {
	case KindJoin:
		if m.TargetID != "" || m.Broadcast || m.SessionDescription != nil || m.ICECandidate != nil || m.Payload != nil {
			return fmt.Errorf("join message has unexpected fields")
		}
	case KindLeave:
		if m.RoomID != "" || m.PeerID != "" || m.DisplayName != "" || m.TargetID != "" || m.Broadcast ||
			m.SessionDescription != nil || m.ICECandidate != nil || m.Payload != nil {
			return fmt.Errorf("leave message has unexpected fields")
		}
	case KindOffer, KindAnswer:
		if m.TargetID == "" {
			return fmt.Errorf("%s message missing targetId", m.Kind)
		}
		if m.SessionDescription == nil {
			return fmt.Errorf("%s message missing sessionDescription", m.Kind)
		}
		if m.RoomID != "" || m.PeerID != "" || m.DisplayName != "" || m.Broadcast || m.ICECandidate != nil || m.Payload != nil {
			return fmt.Errorf("%s message has unexpected fields", m.Kind)
		}
	case KindCandidate:
		if m.TargetID == "" {
			return fmt.Errorf("candidate message missing targetId")
		}
		if m.ICECandidate == nil {
			return fmt.Errorf("candidate message missing iceCandidate")
		}
		if m.RoomID != "" || m.PeerID != "" || m.DisplayName != "" || m.Broadcast || m.SessionDescription != nil || m.Payload != nil {
			return fmt.Errorf("candidate message has unexpected fields")
		}
	case KindMessage:
		if m.Payload == nil {
			return fmt.Errorf("message missing payload")
		}
		if m.TargetID == "" && !m.Broadcast {
			return fmt.Errorf("message requires targetId or broadcast")
		}
		if m.TargetID != "" && m.Broadcast {
			return fmt.Errorf("message must not set both targetId and broadcast")
		}
		if m.RoomID != "" || m.PeerID != "" || m.DisplayName != "" || m.SessionDescription != nil || m.ICECandidate != nil {
			return fmt.Errorf("message has unexpected fields")
		}
	default:
		return fmt.Errorf("unsupported message kind %q", m.Kind)
	}
	return nil
}

// Member is the wire form of a room participant.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Outbound envelopes. One struct per kind keeps required fields required on
// the wire (room_joined always carries members, even when empty).

type Connected struct {
	Kind         Kind   `json:"kind"`
	ConnectionID string `json:"connectionId"`
}

type RoomJoined struct {
	Kind    Kind     `json:"kind"`
	RoomID  string   `json:"roomId"`
	SelfID  string   `json:"selfId"`
	Members []Member `json:"members"`
}

type UserJoined struct {
	Kind   Kind   `json:"kind"`
	RoomID string `json:"roomId"`
	User   Member `json:"user"`
}

type UserLeft struct {
	Kind         Kind   `json:"kind"`
	RoomID       string `json:"roomId"`
	ConnectionID string `json:"connectionId"`
}

type RoomClosed struct {
	Kind   Kind   `json:"kind"`
	RoomID string `json:"roomId"`
}

// Relay is the outbound form of offer/answer/candidate/message: the opaque
// body annotated with the sending connection's id.
type Relay struct {
	Kind     Kind            `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	SourceID string          `json:"sourceId"`
}

// EncodeFrame marshals an outbound envelope for transport.
func EncodeFrame(v any) ([]byte, error) {
	return json.Marshal(v)
}
