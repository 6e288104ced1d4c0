package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// User is a participant's per-connection identity. It lives exactly as long
// as the connection that owns it.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"` // Hex color for cursor/highlight
	Cursor *Point `json:"cursor,omitempty"`
}

// ConnectionInfo describes one live transport connection.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

func NewConnectionInfo(remoteAddr string) ConnectionInfo {
	return ConnectionInfo{
		ID:          ksuid.New().String(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
}

// SessionCreated is the response to POST /api/sessions.
type SessionCreated struct {
	SessionID  string `json:"sessionId"`
	InviteLink string `json:"inviteLink"`
}

// SessionInfo is the response to GET /api/sessions/{id}.
type SessionInfo struct {
	SessionID        string   `json:"sessionId"`
	Elements         Elements `json:"elements"`
	ParticipantCount int      `json:"participantCount"`
	CreatedAt        int64    `json:"createdAt,omitempty"` // unix millis
}

// ReplaceElements is the body of PUT /api/sessions/{id}/elements.
type ReplaceElements struct {
	Elements Elements `json:"elements"`
}

// Background is the board backdrop. Local to a client, never sent on the wire.
type Background struct {
	Color          string  `json:"color"`
	Pattern        string  `json:"pattern"` // none, grid, dots, lines
	PatternColor   string  `json:"patternColor"`
	PatternOpacity float64 `json:"patternOpacity"`
	PatternSize    float64 `json:"patternSize"`
}

// DefaultBackground is a plain white board.
func DefaultBackground() Background {
	return Background{
		Color:          "#ffffff",
		Pattern:        "none",
		PatternColor:   "#e5e7eb",
		PatternOpacity: 0.5,
		PatternSize:    20,
	}
}

// Camera is the local viewport transform.
type Camera struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

func DefaultCamera() Camera {
	return Camera{Scale: 1}
}
