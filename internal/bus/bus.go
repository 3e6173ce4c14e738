// Package bus fans room broadcasts out across signaling instances.
//
// A single-process deployment uses Nop; multi-instance deployments plug in
// the Redis pub/sub implementation so rooms spanning connections on
// different instances still relay correctly.
package bus

import (
	"context"
	"encoding/json"
)

// Envelope is the cross-instance broadcast frame. Frame is the serialized
// outbound signaling message, opaque to the bus.
type Envelope struct {
	Origin  string          `json:"origin"`
	RoomID  string          `json:"roomId"`
	Exclude string          `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

type Bus interface {
	// Publish sends a room broadcast to all other instances.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe invokes fn for every envelope published by any instance,
	// including this one (callers filter on Envelope.Origin). It blocks until
	// ctx is done.
	Subscribe(ctx context.Context, fn func(Envelope))

	Close() error
}

// Nop is the single-instance bus: publishes vanish, subscriptions idle.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }

func (Nop) Subscribe(ctx context.Context, _ func(Envelope)) { <-ctx.Done() }

func (Nop) Close() error { return nil }
