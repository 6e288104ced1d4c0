package models

import (
	"encoding/json"
	"fmt"
)

// MessageType is the "type" discriminant of every protocol frame.
type MessageType string

const (
	// Client -> server
	MessageJoinSession  MessageType = "join_session"
	MessageLeaveSession MessageType = "leave_session"

	// Both directions
	MessageDrawingUpdate MessageType = "drawing_update"
	MessageCursorMove    MessageType = "cursor_move"

	// Server -> client
	MessageSessionJoined MessageType = "session_joined"
	MessageUserJoined    MessageType = "user_joined"
	MessageUserLeft      MessageType = "user_left"
	MessageError         MessageType = "error"
)

// PeekType reads only the discriminant of a raw frame.
func PeekType(raw []byte) (MessageType, error) {
	var env struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("message has no type")
	}
	return env.Type, nil
}

// Client -> server frames

type JoinSessionMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	UserName  string      `json:"userName"`
}

// DrawingUpdateMessage carries the sender's full element list. Clients send the
// in-progress element as "element"; "currentElement" is accepted as well.
type DrawingUpdateMessage struct {
	Type           MessageType   `json:"type"`
	Elements       *Elements     `json:"elements,omitempty"`
	Element        *ElementValue `json:"element,omitempty"`
	CurrentElement *ElementValue `json:"currentElement,omitempty"`
}

// InProgress returns the optional not-yet-committed element.
func (m DrawingUpdateMessage) InProgress() Element {
	if el := m.Element.Unwrap(); el != nil {
		return el
	}
	return m.CurrentElement.Unwrap()
}

type CursorMoveMessage struct {
	Type   MessageType `json:"type"`
	Cursor *Point      `json:"cursor"`
}

type LeaveSessionMessage struct {
	Type MessageType `json:"type"`
}

func NewJoinSession(sessionID, userName string) JoinSessionMessage {
	return JoinSessionMessage{Type: MessageJoinSession, SessionID: sessionID, UserName: userName}
}

func NewDrawingUpdate(elements Elements, current Element) DrawingUpdateMessage {
	return DrawingUpdateMessage{Type: MessageDrawingUpdate, Elements: &elements, Element: Current(current)}
}

func NewCursorMove(cursor Point) CursorMoveMessage {
	return CursorMoveMessage{Type: MessageCursorMove, Cursor: &cursor}
}

func NewLeaveSession() LeaveSessionMessage {
	return LeaveSessionMessage{Type: MessageLeaveSession}
}

// Server -> client frames

type SessionJoinedEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	User      User        `json:"user"`
	Elements  Elements    `json:"elements"`
}

type DrawingUpdateEvent struct {
	Type           MessageType   `json:"type"`
	Elements       Elements      `json:"elements"`
	CurrentElement *ElementValue `json:"currentElement,omitempty"`
}

type UserJoinedEvent struct {
	Type MessageType `json:"type"`
	User User        `json:"user"`
}

type UserLeftEvent struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
}

type CursorMoveEvent struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
	Cursor Point       `json:"cursor"`
}

type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewSessionJoined(sessionID string, user User, elements Elements) SessionJoinedEvent {
	return SessionJoinedEvent{Type: MessageSessionJoined, SessionID: sessionID, User: user, Elements: elements}
}

func NewDrawingUpdateEvent(elements Elements, current Element) DrawingUpdateEvent {
	return DrawingUpdateEvent{Type: MessageDrawingUpdate, Elements: elements, CurrentElement: Current(current)}
}

func NewUserJoined(user User) UserJoinedEvent {
	return UserJoinedEvent{Type: MessageUserJoined, User: user}
}

func NewUserLeft(userID string) UserLeftEvent {
	return UserLeftEvent{Type: MessageUserLeft, UserID: userID}
}

func NewCursorMoveEvent(userID string, cursor Point) CursorMoveEvent {
	return CursorMoveEvent{Type: MessageCursorMove, UserID: userID, Cursor: cursor}
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: MessageError, Message: message}
}
