package metrics

import "sync"

// Well-known counter names used across the signaling core.
const (
	ActiveConnections = "active_connections"
	ActiveRooms       = "active_rooms"

	ConnectionsTotal = "connections_total"
	JoinsTotal       = "joins_total"
	LeavesTotal      = "leaves_total"
	RoomsClosedTotal = "rooms_closed_total"
	RelayedTotal     = "relayed_total"

	DropReasonNoTarget    = "relay_dropped_no_target"
	DropReasonQueueFull   = "send_dropped_queue_full"
	DropReasonRateLimited = "dropped_rate_limited"
	DropReasonBadMessage  = "dropped_bad_message"

	AuthFailure           = "auth_failures_total"
	BusPublishErrorsTotal = "bus_publish_errors_total"
	BusDeliveredTotal     = "bus_delivered_total"
)

// Sink is the interval-counter collaborator consumed by the signaling core.
// Implementations must be safe for concurrent use.
type Sink interface {
	Inc(name string)
	Dec(name string)
}

// Metrics is a minimal, concurrency-safe counter registry.
//
// It doubles as the in-process source for the Prometheus exposition handler
// and keeps routing/lifecycle logic testable without a metrics backend.
type Metrics struct {
	mu sync.Mutex
	m  map[string]int64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]int64),
	}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Dec(name string) {
	m.mu.Lock()
	m.m[name]--
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

// Nop discards all observations.
type Nop struct{}

func (Nop) Inc(string) {}
func (Nop) Dec(string) {}
