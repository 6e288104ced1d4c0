package collaboration

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"sparkboard/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePeer records what the relay delivered to it.
type fakePeer struct {
	id     string
	closed bool
	full   bool
	got    [][]byte
}

func (p *fakePeer) ID() string { return p.id }
func (p *fakePeer) Open() bool { return !p.closed }
func (p *fakePeer) Close()     { p.closed = true }
func (p *fakePeer) Send(msg []byte) bool {
	if p.full {
		return false
	}
	p.got = append(p.got, msg)
	return true
}

// panicPeer blows up on delivery.
type panicPeer struct{ id string }

func (p panicPeer) ID() string       { return p.id }
func (p panicPeer) Open() bool       { return true }
func (p panicPeer) Close()           {}
func (p panicPeer) Send([]byte) bool { panic("send exploded") }

func testConnection(id string) *Connection {
	return newConnection(models.ConnectionInfo{ID: id, RemoteAddr: "test"}, nil, 64)
}

// queued drains every frame currently queued on c.
func queued(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func decodeAs[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func frameType(t *testing.T, raw []byte) models.MessageType {
	t.Helper()
	typ, err := models.PeekType(raw)
	require.NoError(t, err)
	return typ
}

func rectangle(id string) models.Rectangle {
	return models.Rectangle{
		Base: models.Base{
			ID:          id,
			Type:        models.ToolRectangle,
			Color:       "#000000",
			StrokeWidth: 2,
			Points:      []models.Point{{X: 10, Y: 10}},
		},
		Width:  40,
		Height: 20,
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
