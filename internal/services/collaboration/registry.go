package collaboration

import (
	"fmt"
	"strings"
	"time"

	"sparkboard/internal/apperror"
	"sparkboard/internal/models"

	"github.com/google/uuid"
)

// maxIDAttempts bounds regeneration when a generated session id collides.
const maxIDAttempts = 16

// Participant is one joined connection and the user it was assigned.
type Participant struct {
	Peer Peer
	User models.User
}

// Room is the authoritative state of one session. Rooms are owned by the hub
// loop; nothing outside it may touch them.
type Room struct {
	ID       string
	Elements models.Elements

	CreatedAt    time.Time
	LastActivity time.Time

	participants map[string]*Participant // connection ID -> participant
	joins        int                     // total joins, drives round-robin colors
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Elements:     models.Elements{},
		CreatedAt:    now,
		LastActivity: now,
		participants: make(map[string]*Participant),
	}
}

func (r *Room) addParticipant(p *Participant) {
	r.participants[p.Peer.ID()] = p
	r.joins++
}

func (r *Room) removeParticipant(connID string) (*Participant, bool) {
	p, ok := r.participants[connID]
	if ok {
		delete(r.participants, connID)
	}
	return p, ok
}

// Participant returns the participant joined over connID.
func (r *Room) Participant(connID string) (*Participant, bool) {
	p, ok := r.participants[connID]
	return p, ok
}

func (r *Room) ParticipantCount() int {
	return len(r.participants)
}

// Info is the HTTP view of the room.
func (r *Room) Info() models.SessionInfo {
	return models.SessionInfo{
		SessionID:        r.ID,
		Elements:         r.Elements.Clone(),
		ParticipantCount: len(r.participants),
		CreatedAt:        r.CreatedAt.UnixMilli(),
	}
}

// RegistryConfig tunes the registry. Zero fields fall back to defaults.
type RegistryConfig struct {
	IdleTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTimeout: time.Hour,
		Now:         time.Now,
		NewID:       NewSessionID,
	}
}

// Registry maps session ids to rooms. It has no lock: every call must come
// from the hub loop.
type Registry struct {
	rooms       map[string]*Room
	idleTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

func NewRegistry(cfg RegistryConfig) *Registry {
	def := DefaultRegistryConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = def.NewID
	}

	return &Registry{
		rooms:       make(map[string]*Room),
		idleTimeout: cfg.IdleTimeout,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
}

// NewSessionID returns the first group of a random UUID: eight URL-safe hex characters.
func NewSessionID() string {
	id, _, _ := strings.Cut(uuid.NewString(), "-")
	return id
}

// Create stores a new empty room. An empty id is generated; a supplied id
// that already exists is a conflict.
func (r *Registry) Create(id string) (*Room, error) {
	if id != "" {
		if _, exists := r.rooms[id]; exists {
			return nil, apperror.Conflict("session", id)
		}
		room := newRoom(id, r.now())
		r.rooms[id] = room
		return room, nil
	}

	for range maxIDAttempts {
		candidate := r.newID()
		if _, exists := r.rooms[candidate]; exists {
			continue
		}
		room := newRoom(candidate, r.now())
		r.rooms[candidate] = room
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate a unique session id after %d attempts", maxIDAttempts)
}

// Get returns the room for id or a SessionNotFound error.
func (r *Registry) Get(id string) (*Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, apperror.SessionNotFound(id)
	}
	return room, nil
}

// GetOrCreate returns the room for id, creating it if unknown.
func (r *Registry) GetOrCreate(id string) (*Room, error) {
	if room, ok := r.rooms[id]; ok {
		return room, nil
	}
	return r.Create(id)
}

// Sweep removes rooms with no participants whose last activity is older than
// the idle timeout, and returns the removed ids. Rooms with participants are
// never removed.
func (r *Registry) Sweep() []string {
	now := r.now()
	var removed []string
	for id, room := range r.rooms {
		if room.ParticipantCount() > 0 {
			continue
		}
		if now.Sub(room.LastActivity) > r.idleTimeout {
			delete(r.rooms, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Touch marks activity on room.
func (r *Registry) Touch(room *Room) {
	room.LastActivity = r.now()
}

func (r *Registry) Len() int {
	return len(r.rooms)
}

// ParticipantTotal counts joined connections across all rooms.
func (r *Registry) ParticipantTotal() int {
	total := 0
	for _, room := range r.rooms {
		total += room.ParticipantCount()
	}
	return total
}
