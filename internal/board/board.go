package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sparkboard/internal/apperror"
	"sparkboard/internal/client"
	"sparkboard/internal/logging"
	"sparkboard/internal/models"
)

/*
LEARNING: WHEN DOES A CHANGE BECOME AN UNDO STEP?

Every element-list change passes through the board, and the board decides
whether it is history-worthy:

  local stroke finished, text placed, list edited  → push
  peer drawing_update with a committed list        → push
  peer drawing_update carrying an in-progress elem → render only
  session_joined                                   → reset to the server list

Rendering a peer's drag frame by frame would otherwise flood the undo stack.

Persistence follows the same split. Outside a session the board is the source
of truth and every commit is saved locally. Inside a session the relay is,
so autosave and external file changes are ignored and local commits go out as
drawing_update instead. Leaving restores the board exactly as it was before
joining.
*/

// Session is the part of the collaboration client the board drives.
type Session interface {
	IsInSession() bool
	SendDrawingUpdate(elements models.Elements, current models.Element) error
}

// Config configures a Board. Session and OnChange are optional.
type Config struct {
	Store    LocalStore
	Session  Session
	Logger   *slog.Logger
	OnChange func(elements models.Elements, inProgress models.Element)
}

type Board struct {
	store    LocalStore
	session  Session
	logger   *slog.Logger
	onChange func(models.Elements, models.Element)

	mu         sync.Mutex
	history    *History
	elements   models.Elements
	background models.Background
	camera     models.Camera

	drawing models.Element // local stroke in progress
	anchor  models.Point
	remote  models.Element // peer stroke in progress

	backup *Snapshot // non-nil from BeginSession until EndSession
}

// New restores the board from cfg.Store.
func New(cfg Config) (*Board, error) {
	if cfg.Store == nil {
		return nil, errors.New("board: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	snap, err := cfg.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}

	return &Board{
		store:      cfg.Store,
		session:    cfg.Session,
		logger:     cfg.Logger.With("component", "board"),
		onChange:   cfg.OnChange,
		history:    NewHistory(snap.Elements),
		elements:   snap.Elements.Clone(),
		background: snap.Background,
		camera:     snap.Camera,
	}, nil
}

// Handlers wraps next so session and drawing events reach the board first.
func (b *Board) Handlers(next client.Handlers) client.Handlers {
	h := next
	h.OnSessionJoined = func(sessionID string, user models.User, elements models.Elements) {
		b.SessionJoined(elements)
		if next.OnSessionJoined != nil {
			next.OnSessionJoined(sessionID, user, elements)
		}
	}
	h.OnElementsUpdate = func(elements models.Elements, current models.Element) {
		b.ApplyRemote(elements, current)
		if next.OnElementsUpdate != nil {
			next.OnElementsUpdate(elements, current)
		}
	}
	return h
}

func (b *Board) Elements() models.Elements {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.elements.Clone()
}

// InProgress is the element being drawn right now: the local one if any,
// otherwise the latest peer frame.
func (b *Board) InProgress() models.Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inProgressLocked()
}

func (b *Board) inProgressLocked() models.Element {
	if b.drawing != nil {
		return b.drawing
	}
	return b.remote
}

func (b *Board) CanUndo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.CanUndo()
}

func (b *Board) CanRedo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.CanRedo()
}

// InSession reports whether the board is between BeginSession and EndSession.
func (b *Board) InSession() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backup != nil
}

// Snapshot is the board's current local state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() Snapshot {
	return Snapshot{
		Elements:   b.elements.Clone(),
		Background: b.background,
		Camera:     b.camera,
		Version:    SnapshotVersion,
	}
}

// Commit records a local edit of the whole list.
func (b *Board) Commit(elements models.Elements) error {
	if err := elements.Validate(); err != nil {
		return fmt.Errorf("invalid elements: %w", err)
	}

	b.mu.Lock()
	b.commitLocked(elements)
	err := b.publishLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return err
}

func (b *Board) commitLocked(elements models.Elements) {
	b.elements = elements.Clone()
	b.history.Commit(b.elements)
}

// publishLocked sends the committed list to peers while in a session and
// saves it locally otherwise. In a session without a live connection the edit
// stays on this board only and ErrNotConnected is returned.
func (b *Board) publishLocked() error {
	if b.backup != nil {
		if b.session == nil || !b.session.IsInSession() {
			b.logger.Warn("edit not sent: not connected to the session", "elements", len(b.elements))
			return fmt.Errorf("edit kept locally only: %w", apperror.ErrNotConnected)
		}
		if err := b.session.SendDrawingUpdate(b.elements.Clone(), nil); err != nil {
			return fmt.Errorf("failed to send drawing update: %w", err)
		}
		return nil
	}
	return b.saveLocked()
}

func (b *Board) saveLocked() error {
	if err := b.store.Save(b.snapshotLocked()); err != nil {
		return fmt.Errorf("failed to save board: %w", err)
	}
	return nil
}

// BeginStroke starts drawing with tool at start.
func (b *Board) BeginStroke(tool models.Tool, start models.Point, color string, strokeWidth float64) error {
	if tool == models.ToolText {
		return errors.New("text is placed with PlaceText")
	}
	el, err := models.NewElement(tool, start, color, strokeWidth, 0)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.drawing = el
	b.anchor = start
	err = b.streamLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return err
}

// Drag moves the in-progress element to p. Without a stroke it does nothing.
func (b *Board) Drag(p models.Point) error {
	b.mu.Lock()
	if b.drawing == nil {
		b.mu.Unlock()
		return nil
	}
	b.drawing = models.UpdateElement(b.drawing, p, b.anchor)
	err := b.streamLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return err
}

// streamLocked relays the in-progress element without committing it.
func (b *Board) streamLocked() error {
	if b.backup == nil || b.session == nil || !b.session.IsInSession() {
		return nil
	}
	if err := b.session.SendDrawingUpdate(b.elements.Clone(), b.drawing); err != nil {
		return fmt.Errorf("failed to send drawing update: %w", err)
	}
	return nil
}

// EndStroke appends the in-progress element and commits the result.
func (b *Board) EndStroke() (models.Element, error) {
	b.mu.Lock()
	el := b.drawing
	if el == nil {
		b.mu.Unlock()
		return nil, nil
	}
	b.drawing = nil

	next := append(b.elements.Clone(), el)
	b.commitLocked(next)
	err := b.publishLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return el, err
}

// CancelStroke discards the in-progress element.
func (b *Board) CancelStroke() {
	b.mu.Lock()
	b.drawing = nil
	elems, current := b.viewLocked()
	b.mu.Unlock()
	b.notify(elems, current)
}

// PlaceText adds a text element at p. Blank text places nothing.
func (b *Board) PlaceText(p models.Point, text, color string, fontSize float64) (models.Element, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	el, err := models.NewElement(models.ToolText, p, color, 1, fontSize)
	if err != nil {
		return nil, err
	}
	placed := models.WithText(el.(models.Text), text)

	b.mu.Lock()
	b.commitLocked(append(b.elements.Clone(), placed))
	err = b.publishLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return placed, err
}

func (b *Board) Undo() (bool, error) { return b.step((*History).Undo) }
func (b *Board) Redo() (bool, error) { return b.step((*History).Redo) }

func (b *Board) step(move func(*History) (models.Elements, bool)) (bool, error) {
	b.mu.Lock()
	elements, ok := move(b.history)
	if !ok {
		b.mu.Unlock()
		return false, nil
	}
	b.elements = elements
	b.drawing = nil
	err := b.publishLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return true, err
}

// ApplyRemote folds a peer's drawing_update into the board. A frame with an
// in-progress element only updates what is rendered.
func (b *Board) ApplyRemote(elements models.Elements, current models.Element) {
	b.mu.Lock()
	if current != nil {
		b.elements = elements.Clone()
		b.remote = current
	} else {
		b.remote = nil
		b.commitLocked(elements)
	}
	elems, inProgress := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, inProgress)
}

// BeginSession backs up the local board before joining. Calling it again
// while a backup exists keeps the first one.
func (b *Board) BeginSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backup != nil {
		return
	}
	snap := b.snapshotLocked()
	b.backup = &snap
}

// SessionJoined replaces the board and its history with the session's list.
func (b *Board) SessionJoined(elements models.Elements) {
	b.mu.Lock()
	if b.backup == nil {
		snap := b.snapshotLocked()
		b.backup = &snap
	}
	b.elements = elements.Clone()
	b.history.Reset(b.elements)
	b.drawing = nil
	b.remote = nil
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.logger.Info("session board loaded", "elements", len(elements))
	b.notify(elems, current)
}

// EndSession restores the pre-join board and saves it locally.
func (b *Board) EndSession() error {
	b.mu.Lock()
	if b.backup == nil {
		b.mu.Unlock()
		return nil
	}
	backup := *b.backup
	b.backup = nil
	b.elements = backup.Elements
	b.background = backup.Background
	b.camera = backup.Camera
	b.history.Reset(b.elements)
	b.drawing = nil
	b.remote = nil
	err := b.saveLocked()
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.logger.Info("local board restored", "elements", len(elems))
	b.notify(elems, current)
	return err
}

// SetBackground changes the local backdrop. It never leaves this client.
func (b *Board) SetBackground(bg models.Background) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.background = bg
	if b.backup != nil {
		return nil
	}
	return b.saveLocked()
}

func (b *Board) SetCamera(c models.Camera) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.camera = c
}

// Save persists the board unless a session is active.
func (b *Board) Save() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backup != nil {
		return false, nil
	}
	return true, b.saveLocked()
}

// Autosave saves every interval until ctx is done, skipping ticks while in a session.
func (b *Board) Autosave(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_, err := b.Save()
			return err
		case <-ticker.C:
			if _, err := b.Save(); err != nil {
				b.logger.Warn("autosave failed", "error", err)
			}
		}
	}
}

// ExternalChange adopts a snapshot written by another process. It is
// ignored while a session is active.
func (b *Board) ExternalChange(snap Snapshot) bool {
	b.mu.Lock()
	if b.backup != nil {
		b.mu.Unlock()
		b.logger.Debug("ignoring external board change during session")
		return false
	}
	b.commitLocked(snap.Elements)
	b.background = snap.Background
	b.camera = snap.Camera
	elems, current := b.viewLocked()
	b.mu.Unlock()

	b.notify(elems, current)
	return true
}

func (b *Board) viewLocked() (models.Elements, models.Element) {
	return b.elements.Clone(), b.inProgressLocked()
}

func (b *Board) notify(elements models.Elements, current models.Element) {
	if b.onChange != nil {
		b.onChange(elements, current)
	}
}
