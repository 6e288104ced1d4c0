package collaboration

import (
	"encoding/json"
	"log/slog"

	"sparkboard/internal/telemetry"
)

// Peer is the relay's view of a participant connection. Implementations must
// not block in Send; a full outbound buffer is reported as false.
type Peer interface {
	ID() string
	Send(msg []byte) bool
	Open() bool
	Close()
}

// Relay fans messages out to the participants of a room.
type Relay struct {
	registry *Registry
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewRelay(registry *Registry, metrics *telemetry.Metrics, logger *slog.Logger) *Relay {
	return &Relay{
		registry: registry,
		metrics:  metrics,
		logger:   logger.With("component", "relay"),
	}
}

// Broadcast serializes msg once and delivers the same bytes to every open
// participant of room except exclude (a connection ID, or "" for none).
// Closed peers are skipped silently. Returns the number of recipients.
func (r *Relay) Broadcast(room *Room, msg any, exclude string) int {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to encode broadcast", "session_id", room.ID, "error", err)
		return 0
	}

	sent := 0
	for connID, p := range room.participants {
		if connID == exclude || !p.Peer.Open() {
			continue
		}
		if p.Peer.Send(data) {
			sent++
		}
	}

	r.registry.Touch(room)
	r.metrics.Broadcast(sent)
	return sent
}

// Send delivers msg to a single peer.
func (r *Relay) Send(peer Peer, msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to encode message", "conn_id", peer.ID(), "error", err)
		return false
	}
	if !peer.Open() {
		return false
	}
	return peer.Send(data)
}
