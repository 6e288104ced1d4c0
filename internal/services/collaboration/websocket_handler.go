package collaboration

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sparkboard/internal/logging"
	"sparkboard/internal/middleware"
	"sparkboard/internal/models"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: WEBSOCKET PUMPS

Each connection gets two goroutines:
- readPump reads frames and hands them to the hub loop. It never touches
  session state itself.
- writePump drains the buffered send channel. Writes never happen on the hub
  loop, so one slow client cannot stall the others.

The ping/pong pair keeps idle connections alive through proxies and detects
dead peers: no pong within pongWait fails the next read.
*/

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Connection is one client transport. It implements Peer.
type Connection struct {
	info models.ConnectionInfo
	conn *websocket.Conn
	send chan []byte

	// Owned by the hub loop.
	closed    bool
	sessionID string
	user      models.User
}

func newConnection(info models.ConnectionInfo, conn *websocket.Conn, bufferSize int) *Connection {
	return &Connection{
		info: info,
		conn: conn,
		send: make(chan []byte, bufferSize),
	}
}

func (c *Connection) ID() string { return c.info.ID }

func (c *Connection) Open() bool { return !c.closed }

// Send queues msg without blocking. A full buffer means the client cannot
// keep up; the connection is closed and the read side cleans up.
func (c *Connection) Send(msg []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.Close()
		return false
	}
}

// Close stops the write pump, which sends a close frame. Idempotent.
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Connection) joined() bool { return c.sessionID != "" }

func (c *Connection) join(sessionID string, user models.User) {
	c.sessionID = sessionID
	c.user = user
}

func (c *Connection) leave() {
	c.sessionID = ""
	c.user = models.User{}
}

// TransportConfig holds the WebSocket limits.
type TransportConfig struct {
	AllowedOrigin   string
	MaxMessageBytes int64
	SendBufferSize  int
}

// WebSocketHandler upgrades requests and attaches the connection to the hub.
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      TransportConfig
	logger   *slog.Logger
}

func NewWebSocketHandler(hub *Hub, cfg TransportConfig, logger *slog.Logger) *WebSocketHandler {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 1 << 20
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigin),
		},
		cfg:    cfg,
		logger: logger.With("component", "websocket"),
	}
}

// originChecker accepts any origin for "*" and requests without an Origin
// header (non-browser clients).
func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := middleware.StartSpan(r.Context(), "WebSocket.Connect",
		attribute.String("remote.addr", r.RemoteAddr),
	)
	defer span.End()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade WebSocket", "error", err, "remote_addr", r.RemoteAddr)
		middleware.AddSpanError(ctx, err)
		return
	}

	c := newConnection(models.NewConnectionInfo(r.RemoteAddr), conn, h.cfg.SendBufferSize)
	span.SetAttributes(attribute.String("conn.id", c.ID()))

	if !h.hub.Submit(func() { h.hub.register(c) }) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// The request context ends when ServeHTTP returns; frames keep its trace.
	connCtx := context.WithoutCancel(ctx)

	go h.writePump(c)
	go h.readPump(connCtx, c)

	h.logger.Info("✓ WebSocket connection established", "conn_id", c.ID(), "remote_addr", r.RemoteAddr)
}

// readPump forwards frames to the hub until the connection fails.
func (h *WebSocketHandler) readPump(ctx context.Context, c *Connection) {
	defer func() {
		h.hub.Submit(func() { h.hub.unregister(ctx, c) })
		c.conn.Close()
	}()

	c.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket closed unexpectedly", "conn_id", c.ID(), "error", err)
			}
			return
		}

		if !h.hub.Submit(func() { _ = h.hub.protocol.HandleMessage(ctx, c, message) }) {
			return
		}
	}
}

// writePump writes queued frames and pings until the send channel closes.
func (h *WebSocketHandler) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("write failed", "conn_id", c.ID(), "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
