package collaboration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"sparkboard/internal/config"
	"sparkboard/internal/logging"
	"sparkboard/internal/models"
	"sparkboard/internal/telemetry"
)

/*
LEARNING: ONE GOROUTINE OWNS ALL SESSION STATE

The hub is an event loop. Read pumps, HTTP handlers and the idle sweeper do
not touch the registry themselves; they submit a func and the loop runs it.
Two consequences:

1. No mutex guards the registry, rooms or per-connection state.
2. Frames from different connections are applied in the order the loop
   receives them, and each one runs to completion before the next starts.

Submit is fire-and-forget (read pumps). Do waits for the result (HTTP).
*/

// ErrHubStopped is returned when work is submitted after the loop exited.
var ErrHubStopped = errors.New("hub stopped")

// HubConfig collects everything the hub wires together.
type HubConfig struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	AutoCreate      bool
	ColorAssignment string
	QueueSize       int
	Metrics         *telemetry.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
}

// HubConfigFromConfig maps process configuration onto the hub.
func HubConfigFromConfig(cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) HubConfig {
	return HubConfig{
		IdleTimeout:     cfg.SessionIdleTimeout,
		SweepInterval:   cfg.SessionSweepInterval,
		AutoCreate:      cfg.AutoCreateSessions,
		ColorAssignment: cfg.ColorAssignment,
		Metrics:         metrics,
		Logger:          logger,
	}
}

// Hub serializes every registry access onto a single goroutine.
type Hub struct {
	registry *Registry
	relay    *Relay
	protocol *ProtocolHandler

	conns map[string]*Connection // every live connection, joined or not

	events        chan func()
	done          chan struct{}
	sweepInterval time.Duration
	metrics       *telemetry.Metrics
	logger        *slog.Logger
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	registry := NewRegistry(RegistryConfig{IdleTimeout: cfg.IdleTimeout, Now: cfg.Now})
	relay := NewRelay(registry, cfg.Metrics, cfg.Logger)
	protocol := NewProtocolHandler(registry, relay, ProtocolConfig{
		AutoCreate: cfg.AutoCreate,
		Colors:     NewColorPicker(cfg.ColorAssignment),
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})

	return &Hub{
		registry:      registry,
		relay:         relay,
		protocol:      protocol,
		conns:         make(map[string]*Connection),
		events:        make(chan func(), cfg.QueueSize),
		done:          make(chan struct{}),
		sweepInterval: cfg.SweepInterval,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With("component", "hub"),
	}
}

// Run processes events until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("🔄 Starting session hub", "sweep_interval", h.sweepInterval)

	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil

		case fn := <-h.events:
			h.run(fn)

		case <-ticker.C:
			h.run(func() { h.Sweep() })
		}
	}
}

// run executes fn, containing any panic to this one event.
func (h *Hub) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in hub event", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Submit queues fn for the loop without waiting. It returns false once the
// hub has stopped.
func (h *Hub) Submit(fn func()) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.events <- fn:
		return true
	case <-h.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (h *Hub) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !h.Submit(func() {
		defer close(finished)
		fn()
	}) {
		return ErrHubStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		// The loop may have run fn just before stopping.
		select {
		case <-finished:
			return nil
		default:
			return ErrHubStopped
		}
	}
}

// Sweep removes idle empty sessions. Runs on the loop.
func (h *Hub) Sweep() []string {
	removed := h.registry.Sweep()
	if len(removed) > 0 {
		h.logger.Info("swept idle sessions", "count", len(removed), "session_ids", removed)
	}
	h.metrics.SessionsSwept(len(removed))
	h.protocol.syncGauges()
	return removed
}

func (h *Hub) register(c *Connection) {
	h.conns[c.ID()] = c
	h.logger.Debug("connection registered", "conn_id", c.ID(), "remote_addr", c.info.RemoteAddr, "total", len(h.conns))
}

// unregister leaves c's session and closes its outbound queue.
func (h *Hub) unregister(ctx context.Context, c *Connection) {
	if _, ok := h.conns[c.ID()]; !ok {
		return
	}
	delete(h.conns, c.ID())
	h.protocol.Leave(ctx, c)
	c.Close()
	h.logger.Debug("connection unregistered", "conn_id", c.ID(), "total", len(h.conns))
}

func (h *Hub) shutdown() {
	h.logger.Info("🛑 Shutting down session hub", "connections", len(h.conns))
	for _, c := range h.conns {
		c.Close()
	}
	h.conns = make(map[string]*Connection)
	h.logger.Info("✓ Session hub shutdown complete")
}

// Session operations for the HTTP surface. Each runs on the loop.

// CreateSession creates an empty session with a generated id.
func (h *Hub) CreateSession(ctx context.Context) (string, error) {
	var id string
	var opErr error
	err := h.Do(ctx, func() {
		room, err := h.registry.Create("")
		if err != nil {
			opErr = err
			return
		}
		id = room.ID
		h.protocol.syncGauges()
		h.logger.Info("session created", "session_id", id)
	})
	if err != nil {
		return "", err
	}
	return id, opErr
}

// SessionInfo returns the session's elements and participant count.
func (h *Hub) SessionInfo(ctx context.Context, id string) (models.SessionInfo, error) {
	var info models.SessionInfo
	var opErr error
	err := h.Do(ctx, func() {
		room, err := h.registry.Get(id)
		if err != nil {
			opErr = err
			return
		}
		info = room.Info()
	})
	if err != nil {
		return models.SessionInfo{}, err
	}
	return info, opErr
}

// ReplaceElements sets the session's element list and relays it to all participants.
func (h *Hub) ReplaceElements(ctx context.Context, id string, elements models.Elements) error {
	var opErr error
	err := h.Do(ctx, func() {
		opErr = h.protocol.ReplaceElements(id, elements)
	})
	if err != nil {
		return err
	}
	return opErr
}

// SessionCount returns the number of sessions in the registry.
func (h *Hub) SessionCount(ctx context.Context) (int, error) {
	var n int
	if err := h.Do(ctx, func() { n = h.registry.Len() }); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
