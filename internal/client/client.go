// Package client is the collaboration client: one outbound WebSocket to the
// relay, the session lifecycle calls, and bounded reconnection.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sparkboard/internal/apperror"
	"sparkboard/internal/logging"
	"sparkboard/internal/models"

	"github.com/gorilla/websocket"
)

/*
LEARNING: WHO OWNS THE CONNECTION

The client holds at most one *websocket.Conn. Each connection gets its own
read goroutine, and that goroutine is the only place a close is noticed. When
it fails it compares its conn with c.conn: if they differ the close was
expected (LeaveSession, Close, or a newer connection replaced it) and nothing
happens. Otherwise the close was unexpected and the reconnect loop starts.

Reconnect delays grow linearly: interval, 2×interval, ... up to the attempt
ceiling. A successful reconnect resends join_session with the same session id
and display name, then resets the attempt counter.
*/

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the relay's HTTP origin, e.g. http://localhost:5000.
	BaseURL              string
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	HTTPClient           *http.Client
	Dialer               *websocket.Dialer
	Logger               *slog.Logger
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:              baseURL,
		MaxReconnectAttempts: 5,
		ReconnectInterval:    time.Second,
	}
}

// Handlers receives server events. Callbacks run on the client's read
// goroutine, one at a time, and should return quickly. Nil callbacks are skipped.
type Handlers struct {
	OnSessionJoined  func(sessionID string, user models.User, elements models.Elements)
	OnElementsUpdate func(elements models.Elements, current models.Element)
	OnUserJoined     func(user models.User)
	OnUserLeft       func(userID string)
	OnCursorMove     func(userID string, cursor models.Point)
	OnError          func(err error)
}

type Client struct {
	cfg        Config
	apiURL     string
	wsURL      string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger

	mu        sync.Mutex
	handlers  Handlers
	conn      *websocket.Conn
	sessionID string
	userName  string
	user      *models.User
	attempts  int
	timer     *time.Timer
	closed    bool

	writeMu sync.Mutex
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	ws := *base
	switch base.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	ws.Path = base.Path + "/ws"

	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	return &Client{
		cfg:        cfg,
		apiURL:     base.String() + "/api",
		wsURL:      ws.String(),
		httpClient: cfg.HTTPClient,
		dialer:     cfg.Dialer,
		logger:     cfg.Logger.With("component", "client"),
	}, nil
}

// SetHandlers replaces all event callbacks.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// CreateSession asks the relay for a new session, connects, and joins it as "Host".
func (c *Client) CreateSession(ctx context.Context) (models.SessionCreated, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/sessions", nil)
	if err != nil {
		return models.SessionCreated{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var created models.SessionCreated
	if err := c.doJSON(req, http.StatusCreated, &created); err != nil {
		return models.SessionCreated{}, fmt.Errorf("failed to create session: %w", err)
	}

	if err := c.enter(ctx, created.SessionID, "Host"); err != nil {
		return models.SessionCreated{}, fmt.Errorf("failed to join created session: %w", err)
	}
	return created, nil
}

// GetSession fetches a session's current state over HTTP.
func (c *Client) GetSession(ctx context.Context, sessionID string) (models.SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return models.SessionInfo{}, err
	}

	var info models.SessionInfo
	if err := c.doJSON(req, http.StatusOK, &info); err != nil {
		var status statusError
		if errors.As(err, &status) && status.code == http.StatusNotFound {
			return models.SessionInfo{}, apperror.SessionNotFound(sessionID)
		}
		return models.SessionInfo{}, err
	}
	return info, nil
}

// JoinSession checks that sessionID exists, connects, and joins it. A blank
// name joins as "Anonymous".
func (c *Client) JoinSession(ctx context.Context, sessionID, userName string) error {
	if strings.TrimSpace(userName) == "" {
		userName = "Anonymous"
	}

	if _, err := c.GetSession(ctx, sessionID); err != nil {
		c.emitError(fmt.Errorf("failed to join session: %w", err))
		return err
	}

	if err := c.enter(ctx, sessionID, userName); err != nil {
		c.emitError(fmt.Errorf("failed to join session: %w", err))
		return err
	}
	return nil
}

// enter records the session, makes sure a connection is open, and sends join_session.
func (c *Client) enter(ctx context.Context, sessionID, userName string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("client closed")
	}
	c.sessionID = sessionID
	c.userName = userName
	c.user = nil
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = c.connect(ctx)
		if err != nil {
			return err
		}
	}

	return c.write(conn, models.NewJoinSession(sessionID, userName))
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.wsURL, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, errors.New("client closed")
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Debug("connected", "url", c.wsURL)
	go c.readLoop(conn)
	return conn, nil
}

// LeaveSession sends leave_session and closes the connection. No reconnect follows.
func (c *Client) LeaveSession() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.sessionID = ""
	c.userName = ""
	c.user = nil
	c.attempts = 0
	c.stopTimerLocked()
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	defer conn.Close()

	err := c.write(conn, models.NewLeaveSession())
	c.writeClose(conn)
	return err
}

// SendDrawingUpdate sends the full element list and the optional in-progress element.
func (c *Client) SendDrawingUpdate(elements models.Elements, current models.Element) error {
	conn, err := c.openConn()
	if err != nil {
		return err
	}
	return c.write(conn, models.NewDrawingUpdate(elements, current))
}

func (c *Client) SendCursorMove(cursor models.Point) error {
	conn, err := c.openConn()
	if err != nil {
		return err
	}
	return c.write(conn, models.NewCursorMove(cursor))
}

// IsInSession reports whether a connection is open and a session id is set.
func (c *Client) IsInSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.sessionID != ""
}

// SessionInfo returns the current session id and the user the relay assigned,
// if session_joined has arrived.
func (c *Client) SessionInfo() (string, *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return c.sessionID, nil
	}
	u := *c.user
	return c.sessionID, &u
}

// Close shuts the client down for good.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.stopTimerLocked()
	c.mu.Unlock()

	if conn != nil {
		c.writeClose(conn)
		return conn.Close()
	}
	return nil
}

func (c *Client) openConn() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, apperror.ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) write(conn *websocket.Conn, msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrConnectionLost, err)
	}
	return nil
}

func (c *Client) writeClose(conn *websocket.Conn) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	msgType, err := models.PeekType(data)
	if err != nil {
		c.logger.Warn("ignoring malformed server message", "error", err)
		return
	}

	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()

	switch msgType {
	case models.MessageSessionJoined:
		var ev models.SessionJoinedEvent
		if !c.decode(data, &ev) {
			return
		}
		c.mu.Lock()
		user := ev.User
		c.user = &user
		c.mu.Unlock()
		c.logger.Info("session joined", "session_id", ev.SessionID, "user_id", ev.User.ID)
		if h.OnSessionJoined != nil {
			h.OnSessionJoined(ev.SessionID, ev.User, ev.Elements)
		}

	case models.MessageDrawingUpdate:
		var ev models.DrawingUpdateEvent
		if !c.decode(data, &ev) {
			return
		}
		if h.OnElementsUpdate != nil {
			h.OnElementsUpdate(ev.Elements, ev.CurrentElement.Unwrap())
		}

	case models.MessageUserJoined:
		var ev models.UserJoinedEvent
		if c.decode(data, &ev) && h.OnUserJoined != nil {
			h.OnUserJoined(ev.User)
		}

	case models.MessageUserLeft:
		var ev models.UserLeftEvent
		if c.decode(data, &ev) && h.OnUserLeft != nil {
			h.OnUserLeft(ev.UserID)
		}

	case models.MessageCursorMove:
		var ev models.CursorMoveEvent
		if c.decode(data, &ev) && h.OnCursorMove != nil {
			h.OnCursorMove(ev.UserID, ev.Cursor)
		}

	case models.MessageError:
		var ev models.ErrorEvent
		if !c.decode(data, &ev) {
			return
		}
		c.logger.Warn("server error", "message", ev.Message)
		c.emitError(c.serverError(ev.Message))

	default:
		c.logger.Warn("unknown message type", "type", msgType)
	}
}

func (c *Client) decode(data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("ignoring undecodable server message", "error", err)
		return false
	}
	return true
}

func (c *Client) serverError(message string) error {
	if message == "Session not found" {
		c.mu.Lock()
		id := c.sessionID
		c.mu.Unlock()
		return apperror.SessionNotFound(id)
	}
	return errors.New(message)
}

func (c *Client) emitError(err error) {
	c.mu.Lock()
	onError := c.handlers.OnError
	c.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func (c *Client) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Closed on purpose or superseded.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	conn.Close()
	c.logger.Warn("connection lost", "error", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the next attempt, or reports exhaustion.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.sessionID == "" {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		attempts := c.attempts
		c.attempts = 0
		c.mu.Unlock()

		c.logger.Error("giving up reconnecting", "attempts", attempts)
		c.emitError(fmt.Errorf("%w after %d attempts", apperror.ErrReconnectExhausted, attempts))
		return
	}

	c.attempts++
	delay := c.cfg.ReconnectInterval * time.Duration(c.attempts)
	c.logger.Info("reconnecting", "attempt", c.attempts, "max", c.cfg.MaxReconnectAttempts, "delay", delay)
	c.timer = time.AfterFunc(delay, c.reconnect)
	c.mu.Unlock()
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed || c.sessionID == "" || c.conn != nil {
		c.mu.Unlock()
		return
	}
	sessionID, name := c.sessionID, c.userName
	if c.user != nil {
		name = c.user.Name
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		c.logger.Warn("reconnect attempt failed", "error", err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed || c.sessionID != sessionID || c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()

	go c.readLoop(conn)

	if err := c.write(conn, models.NewJoinSession(sessionID, name)); err != nil {
		c.logger.Warn("rejoin failed", "error", err)
		return
	}
	c.logger.Info("reconnected", "session_id", sessionID)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *Client) doJSON(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrConnectionLost, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return statusError{code: resp.StatusCode, body: body.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
