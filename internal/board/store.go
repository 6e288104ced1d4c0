package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sparkboard/internal/models"

	"github.com/fsnotify/fsnotify"
)

// SnapshotVersion is written into every saved snapshot.
const SnapshotVersion = "1.0"

// Snapshot is everything a client persists locally between runs.
type Snapshot struct {
	Elements   models.Elements   `json:"elements"`
	Background models.Background `json:"background"`
	Camera     models.Camera     `json:"camera"`
	Timestamp  int64             `json:"timestamp"` // unix millis
	Version    string            `json:"version"`
}

// EmptySnapshot is a blank board with default background and camera.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Elements:   models.Elements{},
		Background: models.DefaultBackground(),
		Camera:     models.DefaultCamera(),
		Version:    SnapshotVersion,
	}
}

// LocalStore persists the local board.
type LocalStore interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path string
	now  func() time.Time

	mu        sync.Mutex
	lastWrite time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing file is an empty board.
func (s *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return EmptySnapshot(), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read board file: %w", err)
	}

	snap := EmptySnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse board file %s: %w", s.path, err)
	}
	if snap.Elements == nil {
		snap.Elements = models.Elements{}
	}
	return snap, nil
}

// Save writes snap atomically, stamping timestamp and version.
func (s *FileStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap.Timestamp = now.UnixMilli()
	snap.Version = SnapshotVersion

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode board: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create board directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write board file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace board file: %w", err)
	}
	s.lastWrite = now
	return nil
}

// Watch calls onChange with the new snapshot whenever another process
// rewrites the file. It blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, logger *slog.Logger, onChange func(Snapshot)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: Save replaces the file by rename.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if s.ownWrite() {
				continue
			}
			snap, err := s.Load()
			if err != nil {
				logger.Warn("ignoring unreadable board file change", "error", err)
				continue
			}
			onChange(snap)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("board file watcher error", "error", err)
		}
	}
}

// ownWrite reports whether the last change was most likely our own Save.
func (s *FileStore) ownWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastWrite.IsZero() && s.now().Sub(s.lastWrite) < 250*time.Millisecond
}

// MemoryStore is an in-process LocalStore.
type MemoryStore struct {
	mu    sync.Mutex
	snap  Snapshot
	saves int
}

func NewMemoryStore(snap Snapshot) *MemoryStore {
	return &MemoryStore{snap: snap}
}

func (m *MemoryStore) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snap
	snap.Elements = snap.Elements.Clone()
	return snap, nil
}

func (m *MemoryStore) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Elements = snap.Elements.Clone()
	snap.Version = SnapshotVersion
	m.snap = snap
	m.saves++
	return nil
}

// Saves counts successful Save calls.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
