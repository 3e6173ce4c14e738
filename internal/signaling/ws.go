package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openmeet/signaling/internal/auth"
	"github.com/openmeet/signaling/internal/config"
	"github.com/openmeet/signaling/internal/metrics"
	"github.com/openmeet/signaling/internal/ratelimit"
)

const writeWait = 10 * time.Second

// wsHandler upgrades signaling clients and bridges their frames to the core.
type wsHandler struct {
	core    *Core
	authz   auth.Authorizer
	cfg     config.Config
	log     *slog.Logger
	metrics metrics.Sink

	upgrader websocket.Upgrader
}

func newWSHandler(core *Core, authz auth.Authorizer, cfg config.Config, log *slog.Logger, sink metrics.Sink) *wsHandler {
	h := &wsHandler{
		core:    core,
		authz:   authz,
		cfg:     cfg,
		log:     log,
		metrics: sink,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker permits any origin when none are configured; browsers enforce
// nothing on ws:// otherwise, and non-browser clients send no Origin at all.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.Authorize(r); err != nil {
		h.metrics.Inc(metrics.AuthFailure)
		h.log.Warn("rejecting signaling connection", "remote_addr", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "err", err)
		return
	}

	c := &client{
		id:      uuid.NewString(),
		ws:      ws,
		out:     make(chan []byte, h.cfg.SendQueueSize),
		done:    make(chan struct{}),
		core:    h.core,
		log:     h.log,
		metrics: h.metrics,
		limiter: ratelimit.NewTokenBucket(
			ratelimit.RealClock{},
			int64(h.cfg.MaxMessagesPerSecond),
			int64(h.cfg.MaxMessagesPerSecond),
		),
		idleTimeout:  h.cfg.WSIdleTimeout,
		pingInterval: h.cfg.WSPingInterval,
		maxBytes:     h.cfg.MaxMessageBytes,
	}

	h.core.Connect(NewConnection(c.id, c))

	go c.writeLoop()
	c.readLoop()
}

// client is one WebSocket connection. The read loop feeds the core; the
// write loop drains out. Send never blocks the caller.
type client struct {
	id      string
	ws      *websocket.Conn
	out     chan []byte
	done    chan struct{}
	core    *Core
	log     *slog.Logger
	metrics metrics.Sink
	limiter *ratelimit.TokenBucket

	idleTimeout  time.Duration
	pingInterval time.Duration
	maxBytes     int64
}

// Send enqueues a marshaled frame. A full queue means the reader is not
// keeping up; the frame is dropped rather than stalling the event loop.
func (c *client) Send(frame []byte) bool {
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}

func (c *client) readLoop() {
	defer func() {
		c.core.Disconnect(c.id)
		close(c.done)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.maxBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read error", "connection_id", c.id, "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.idleTimeout))

		if msgType != websocket.TextMessage {
			c.closeWith(websocket.CloseUnsupportedData, "text frames only")
			return
		}
		if !c.limiter.Allow(1) {
			c.metrics.Inc(metrics.DropReasonRateLimited)
			c.log.Warn("closing connection, rate limit exceeded", "connection_id", c.id)
			c.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		msg, err := ParseInbound(data)
		if err != nil {
			c.metrics.Inc(metrics.DropReasonBadMessage)
			c.log.Warn("closing connection, malformed message", "connection_id", c.id, "err", err)
			c.closeWith(websocket.ClosePolicyViolation, "malformed message")
			return
		}
		c.core.HandleMessage(c.id, msg)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
