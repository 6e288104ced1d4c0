package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"sparkboard/internal/apperror"
	"sparkboard/internal/logging"
	"sparkboard/internal/middleware"
	"sparkboard/internal/models"
	"sparkboard/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: A PER-CONNECTION STATE MACHINE ON ONE LOOP

Each connection is either unjoined or joined to exactly one session. Every
transition below runs on the hub loop, one message at a time, so the room it
touches cannot change underneath it. There are no locks in this file.

A bad frame (unparseable JSON, unknown type, invalid element list, even a
panic while handling it) is logged and dropped. The connection stays open and
the next frame is processed normally.
*/

// DefaultUserName is assigned when a joiner supplies a blank name.
const DefaultUserName = "Anonymous"

// ProtocolHandler drives the registry and relay from inbound frames.
type ProtocolHandler struct {
	registry   *Registry
	relay      *Relay
	colors     ColorPicker
	autoCreate bool
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// ProtocolConfig configures a ProtocolHandler.
type ProtocolConfig struct {
	// AutoCreate makes a join to an unknown id create the session instead of
	// replying with "Session not found".
	AutoCreate bool
	Colors     ColorPicker
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
}

func NewProtocolHandler(registry *Registry, relay *Relay, cfg ProtocolConfig) *ProtocolHandler {
	if cfg.Colors == nil {
		cfg.Colors = randomColors{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &ProtocolHandler{
		registry:   registry,
		relay:      relay,
		colors:     cfg.Colors,
		autoCreate: cfg.AutoCreate,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "protocol"),
	}
}

// HandleMessage decodes one raw frame from c and applies it. The returned
// error has already been logged; it wraps apperror.ErrProtocol for dropped frames.
func (h *ProtocolHandler) HandleMessage(ctx context.Context, c *Connection, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic handling message",
				"conn_id", c.ID(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			h.metrics.MessageDropped(telemetry.DropPanic)
			err = apperror.Protocol("panic handling message: %v", r)
		}
	}()

	msgType, err := models.PeekType(raw)
	if err != nil {
		return h.drop(c, telemetry.DropMalformed, raw, err)
	}

	ctx, span := middleware.StartSpan(ctx, "Protocol."+string(msgType),
		attribute.String("conn.id", c.ID()),
		attribute.String("session.id", c.sessionID),
		attribute.Int("message.size", len(raw)),
	)
	defer span.End()

	h.logger.Debug("message received", "conn_id", c.ID(), "type", msgType, "size", len(raw))

	switch msgType {
	case models.MessageJoinSession:
		var msg models.JoinSessionMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return h.drop(c, telemetry.DropMalformed, raw, err)
		}
		h.metrics.MessageReceived(string(msgType))
		err = h.Join(ctx, c, msg.SessionID, msg.UserName)

	case models.MessageDrawingUpdate:
		var msg models.DrawingUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return h.drop(c, telemetry.DropMalformed, raw, err)
		}
		h.metrics.MessageReceived(string(msgType))
		err = h.DrawingUpdate(ctx, c, msg)

	case models.MessageCursorMove:
		var msg models.CursorMoveMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return h.drop(c, telemetry.DropMalformed, raw, err)
		}
		h.metrics.MessageReceived(string(msgType))
		err = h.CursorMove(ctx, c, msg.Cursor)

	case models.MessageLeaveSession:
		h.metrics.MessageReceived(string(msgType))
		h.Leave(ctx, c)

	default:
		return h.drop(c, telemetry.DropUnknownType, raw, fmt.Errorf("unknown message type %q", msgType))
	}

	if errors.Is(err, apperror.ErrProtocol) {
		h.metrics.MessageDropped(telemetry.DropInvalid)
		h.logger.Warn("dropping message", "conn_id", c.ID(), "type", msgType, "error", err)
	}
	middleware.AddSpanError(ctx, err)
	return err
}

func (h *ProtocolHandler) drop(c *Connection, reason string, raw []byte, cause error) error {
	h.metrics.MessageDropped(reason)
	h.logger.Warn("dropping message",
		"conn_id", c.ID(),
		"reason", reason,
		"error", cause,
		"frame", logging.SanitizeMessage(truncate(string(raw), 256)),
	)
	return fmt.Errorf("%w: %s: %v", apperror.ErrProtocol, reason, cause)
}

// Join moves c into sessionID under userName, leaving any other session it
// was in first. Joining the session c is already in resends session_joined
// for the existing user and tells nobody else.
func (h *ProtocolHandler) Join(ctx context.Context, c *Connection, sessionID, userName string) error {
	if c.joined() && c.sessionID == sessionID {
		if room, ok := h.currentRoom(c); ok {
			h.registry.Touch(room)
			h.relay.Send(c, models.NewSessionJoined(room.ID, c.user, room.Elements.Clone()))
			return nil
		}
	}
	if c.joined() {
		h.Leave(ctx, c)
	}

	room, err := h.resolve(sessionID)
	if err != nil {
		message := "Failed to join session"
		if errors.Is(err, apperror.ErrNotFound) {
			message = "Session not found"
		}
		h.relay.Send(c, models.NewErrorEvent(message))
		h.logger.Info("join rejected", "conn_id", c.ID(), "session_id", sessionID, "error", err)
		return err
	}

	name := strings.TrimSpace(userName)
	if name == "" {
		name = DefaultUserName
	}

	user := models.User{
		ID:    uuid.NewString(),
		Name:  name,
		Color: h.colors.Pick(room),
	}

	room.addParticipant(&Participant{Peer: c, User: user})
	c.join(room.ID, user)
	h.registry.Touch(room)

	h.relay.Send(c, models.NewSessionJoined(room.ID, user, room.Elements.Clone()))
	h.relay.Broadcast(room, models.NewUserJoined(user), c.ID())

	middleware.AddSpanEvent(ctx, "session.joined",
		attribute.String("session.id", room.ID),
		attribute.String("user.id", user.ID),
	)
	h.logger.Info("user joined",
		"conn_id", c.ID(),
		"session_id", room.ID,
		"user_id", user.ID,
		"user_name", user.Name,
		"participants", room.ParticipantCount(),
	)
	h.syncGauges()
	return nil
}

func (h *ProtocolHandler) resolve(sessionID string) (*Room, error) {
	if h.autoCreate {
		room, err := h.registry.GetOrCreate(sessionID)
		if err == nil {
			h.syncGauges()
		}
		return room, err
	}
	return h.registry.Get(sessionID)
}

// DrawingUpdate replaces the session's element list with the sender's and
// relays it, with the optional in-progress element, to everyone else.
// A message from an unjoined connection is ignored.
func (h *ProtocolHandler) DrawingUpdate(ctx context.Context, c *Connection, msg models.DrawingUpdateMessage) error {
	room, ok := h.currentRoom(c)
	if !ok {
		h.logger.Debug("drawing update from unjoined connection", "conn_id", c.ID())
		return nil
	}

	// Validate the whole frame before touching the room.
	if msg.Elements != nil {
		if err := msg.Elements.Validate(); err != nil {
			return apperror.Protocol("invalid element list: %v", err)
		}
	}
	current := msg.InProgress()
	if current != nil {
		if err := (models.Elements{current}).Validate(); err != nil {
			return apperror.Protocol("invalid current element: %v", err)
		}
	}

	if msg.Elements != nil {
		room.Elements = *msg.Elements
	}

	recipients := h.relay.Broadcast(room, models.NewDrawingUpdateEvent(room.Elements, current), c.ID())
	middleware.AddSpanEvent(ctx, "drawing.relayed",
		attribute.Int("elements", len(room.Elements)),
		attribute.Int("recipients", recipients),
		attribute.Bool("in_progress", current != nil),
	)
	return nil
}

// ReplaceElements sets a session's element list from outside the protocol
// and relays it to every participant.
func (h *ProtocolHandler) ReplaceElements(sessionID string, elements models.Elements) error {
	room, err := h.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if err := elements.Validate(); err != nil {
		return apperror.ValidationFailed("elements", err.Error())
	}
	if elements == nil {
		elements = models.Elements{}
	}

	room.Elements = elements
	h.relay.Broadcast(room, models.NewDrawingUpdateEvent(room.Elements, nil), "")
	return nil
}

// CursorMove records the sender's cursor and relays it. Element state is untouched.
func (h *ProtocolHandler) CursorMove(ctx context.Context, c *Connection, cursor *models.Point) error {
	room, ok := h.currentRoom(c)
	if !ok {
		return nil
	}
	if cursor == nil {
		return apperror.Protocol("cursor_move without cursor")
	}

	p, ok := room.Participant(c.ID())
	if !ok {
		return nil
	}
	pos := *cursor
	p.User.Cursor = &pos
	c.user.Cursor = &pos

	h.relay.Broadcast(room, models.NewCursorMoveEvent(p.User.ID, pos), c.ID())
	return nil
}

// Leave removes c from its session and tells the remaining participants.
// Leaving while unjoined is a no-op.
func (h *ProtocolHandler) Leave(ctx context.Context, c *Connection) {
	if !c.joined() {
		return
	}
	sessionID, user := c.sessionID, c.user
	c.leave()

	room, err := h.registry.Get(sessionID)
	if err != nil {
		h.syncGauges()
		return
	}
	if _, ok := room.removeParticipant(c.ID()); !ok {
		return
	}

	h.registry.Touch(room)
	h.relay.Broadcast(room, models.NewUserLeft(user.ID), "")

	middleware.AddSpanEvent(ctx, "session.left",
		attribute.String("session.id", sessionID),
		attribute.String("user.id", user.ID),
	)
	h.logger.Info("user left",
		"conn_id", c.ID(),
		"session_id", sessionID,
		"user_id", user.ID,
		"remaining", room.ParticipantCount(),
	)
	h.syncGauges()
}

func (h *ProtocolHandler) currentRoom(c *Connection) (*Room, bool) {
	if !c.joined() {
		return nil, false
	}
	room, err := h.registry.Get(c.sessionID)
	if err != nil {
		return nil, false
	}
	return room, true
}

func (h *ProtocolHandler) syncGauges() {
	h.metrics.SetActive(h.registry.Len(), h.registry.ParticipantTotal())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
