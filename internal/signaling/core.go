package signaling

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openmeet/signaling/internal/bus"
	"github.com/openmeet/signaling/internal/metrics"
)

// Tracer observes event handling. Span returns a func that closes the span.
type Tracer interface {
	Span(name string) func()
}

// NopTracer discards all spans.
type NopTracer struct{}

func (NopTracer) Span(string) func() { return func() {} }

// LogTracer logs span durations at debug level.
type LogTracer struct {
	Log *slog.Logger
}

func (t LogTracer) Span(name string) func() {
	start := time.Now()
	return func() {
		t.Log.Debug("event handled", "event", name, "duration_us", time.Since(start).Microseconds())
	}
}

const eventQueueSize = 256

type eventKind int

const (
	evConnect eventKind = iota
	evMessage
	evDisconnect
	evBus
	evCommand
)

type event struct {
	kind eventKind

	conn   *Connection // evConnect
	connID string      // evMessage, evDisconnect
	msg    Inbound     // evMessage
	env    bus.Envelope
	cmd    func() // evCommand, runs inside the loop
}

// Core serializes all registry mutation onto one goroutine. Transports, the
// bus subscription and admin handlers feed events into a single channel;
// handlers run one at a time to completion, so no lock guards the registries
// and no client ever observes a half-applied membership change.
type Core struct {
	log     *slog.Logger
	metrics metrics.Sink
	tracer  Tracer
	bus     bus.Bus

	// instanceID distinguishes this process's bus envelopes from siblings'.
	instanceID string

	conns     *ConnectionRegistry
	rooms     *RoomRegistry
	router    *Router
	lifecycle *Lifecycle

	events  chan event
	stopped chan struct{}
}

func NewCore(log *slog.Logger, sink metrics.Sink, tracer Tracer, b bus.Bus) *Core {
	if tracer == nil {
		tracer = NopTracer{}
	}
	conns := NewConnectionRegistry(log)
	rooms := NewRoomRegistry()
	router := NewRouter(conns, rooms, sink, log)

	c := &Core{
		log:        log,
		metrics:    sink,
		tracer:     tracer,
		bus:        b,
		instanceID: uuid.NewString(),
		conns:      conns,
		rooms:      rooms,
		router:     router,
		lifecycle:  NewLifecycle(conns, rooms, router, sink, log),
		events:     make(chan event, eventQueueSize),
		stopped:    make(chan struct{}),
	}

	c.router.SetPublisher(func(roomID, exclude string, frame []byte) {
		env := bus.Envelope{
			Origin:  c.instanceID,
			RoomID:  roomID,
			Exclude: exclude,
			Frame:   frame,
		}
		if err := c.bus.Publish(context.Background(), env); err != nil {
			c.metrics.Inc(metrics.BusPublishErrorsTotal)
			c.log.Warn("bus publish failed", "room_id", roomID, "err", err)
		}
	})

	return c
}

// Run consumes events until ctx is canceled. It owns the registries; nothing
// else may touch them while it runs.
func (c *Core) Run(ctx context.Context) {
	defer close(c.stopped)

	go c.bus.Subscribe(ctx, func(env bus.Envelope) {
		select {
		case c.events <- event{kind: evBus, env: env}:
		case <-ctx.Done():
		}
	})

	c.log.Info("signaling core running", "instance_id", c.instanceID)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("signaling core stopping")
			return
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

func (c *Core) dispatch(ev event) {
	switch ev.kind {
	case evConnect:
		end := c.tracer.Span("connect")
		c.lifecycle.Connect(ev.conn)
		end()
	case evMessage:
		end := c.tracer.Span(string(ev.msg.Kind))
		c.handleMessage(ev.connID, ev.msg)
		end()
	case evDisconnect:
		end := c.tracer.Span("disconnect")
		c.lifecycle.Disconnect(ev.connID)
		end()
	case evBus:
		end := c.tracer.Span("bus_delivery")
		c.handleBusDelivery(ev.env)
		end()
	case evCommand:
		end := c.tracer.Span("command")
		ev.cmd()
		end()
	}
}

func (c *Core) handleMessage(connID string, msg Inbound) {
	conn, ok := c.conns.Lookup(connID)
	if !ok {
		// The transport raced its own disconnect; nothing to do.
		return
	}
	switch msg.Kind {
	case KindJoin:
		c.lifecycle.Join(conn, msg)
	case KindLeave:
		c.lifecycle.Leave(conn)
	case KindOffer, KindAnswer, KindCandidate, KindMessage:
		c.router.Relay(conn, msg)
	}
}

func (c *Core) handleBusDelivery(env bus.Envelope) {
	if env.Origin == c.instanceID {
		return
	}
	c.metrics.Inc(metrics.BusDeliveredTotal)
	c.router.BroadcastFrame(env.RoomID, env.Exclude, env.Frame)
}

// Connect hands a freshly upgraded connection to the loop.
func (c *Core) Connect(conn *Connection) {
	c.post(event{kind: evConnect, conn: conn})
}

// HandleMessage hands one parsed inbound envelope to the loop.
func (c *Core) HandleMessage(connID string, msg Inbound) {
	c.post(event{kind: evMessage, connID: connID, msg: msg})
}

// Disconnect reports a closed transport to the loop.
func (c *Core) Disconnect(connID string) {
	c.post(event{kind: evDisconnect, connID: connID})
}

func (c *Core) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.stopped:
	}
}

// do runs fn inside the event loop and waits for it. Used by the admin
// surface so queries see the same serialized state as everything else.
func (c *Core) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case c.events <- event{kind: evCommand, cmd: func() { fn(); close(done) }}:
	case <-c.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-c.stopped:
		return false
	}
}

// RoomSummary is the admin listing form of a room.
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
}

// RoomDetail is the admin inspection form of a room.
type RoomDetail struct {
	RoomID      string   `json:"roomId"`
	MemberCount int      `json:"memberCount"`
	Members     []Member `json:"members"`
}

// Stats is the admin counters snapshot.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// CreateRoom reserves a room id without materializing a room.
func (c *Core) CreateRoom(roomID string) (string, bool) {
	var id string
	ok := c.do(func() { id = c.lifecycle.ReserveRoomID(roomID) })
	return id, ok
}

// DeleteRoom force-closes a room. The second return is false when the core
// has stopped.
func (c *Core) DeleteRoom(roomID string) (existed, ok bool) {
	ok = c.do(func() { existed = c.lifecycle.CloseRoom(roomID) })
	return existed, ok
}

// Room returns a point-in-time view of one room.
func (c *Core) Room(roomID string) (RoomDetail, bool) {
	var (
		detail RoomDetail
		found  bool
	)
	c.do(func() {
		room, ok := c.rooms.Lookup(roomID)
		if !ok {
			return
		}
		found = true
		detail = RoomDetail{
			RoomID:      room.ID,
			MemberCount: room.MemberCount(),
			Members:     make([]Member, 0, room.MemberCount()),
		}
		for _, id := range room.MemberIDs() {
			if conn, ok := c.conns.Lookup(id); ok {
				detail.Members = append(detail.Members, Member{ID: conn.ID, DisplayName: conn.DisplayName})
			}
		}
	})
	return detail, found
}

// Rooms returns a point-in-time listing of all rooms.
func (c *Core) Rooms() []RoomSummary {
	summaries := make([]RoomSummary, 0)
	c.do(func() {
		for _, room := range c.rooms.All() {
			summaries = append(summaries, RoomSummary{RoomID: room.ID, MemberCount: room.MemberCount()})
		}
	})
	return summaries
}

// Stats returns current connection and room counts.
func (c *Core) Stats() Stats {
	var stats Stats
	c.do(func() {
		stats = Stats{
			Connections: c.conns.Count(),
			Rooms:       c.rooms.Count(),
		}
	})
	return stats
}
