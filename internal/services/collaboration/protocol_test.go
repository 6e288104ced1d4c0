package collaboration

import (
	"context"
	"fmt"
	"testing"

	"sparkboard/internal/apperror"
	"sparkboard/internal/logging"
	"sparkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type protocolFixture struct {
	registry *Registry
	handler  *ProtocolHandler
	clock    *fakeClock
}

func newProtocolFixture(autoCreate bool) *protocolFixture {
	clock := newFakeClock()
	registry := NewRegistry(RegistryConfig{Now: clock.Now, NewID: func() string { return "a1b2c3d4" }})
	relay := NewRelay(registry, nil, logging.Discard())
	handler := NewProtocolHandler(registry, relay, ProtocolConfig{
		AutoCreate: autoCreate,
		Colors:     roundRobinColors{},
	})
	return &protocolFixture{registry: registry, handler: handler, clock: clock}
}

func (f *protocolFixture) send(t *testing.T, c *Connection, msg any) error {
	t.Helper()
	return f.handler.HandleMessage(context.Background(), c, mustJSON(t, msg))
}

func TestCollaborationScenario(t *testing.T) {
	f := newProtocolFixture(false)
	ctx := context.Background()

	room, err := f.registry.Create("")
	require.NoError(t, err)
	require.Equal(t, "a1b2c3d4", room.ID)

	a := testConnection("conn-a")
	b := testConnection("conn-b")

	require.NoError(t, f.send(t, a, models.NewJoinSession("a1b2c3d4", "Host")))
	queued(a)

	require.NoError(t, f.send(t, b, models.NewJoinSession("a1b2c3d4", "Bob")))

	bFrames := queued(b)
	require.Len(t, bFrames, 1)
	joined := decodeAs[models.SessionJoinedEvent](t, bFrames[0])
	assert.Equal(t, models.MessageSessionJoined, joined.Type)
	assert.Equal(t, "a1b2c3d4", joined.SessionID)
	assert.Equal(t, "Bob", joined.User.Name)
	assert.NotEmpty(t, joined.User.ID)
	assert.Contains(t, Palette, joined.User.Color)
	assert.Empty(t, joined.Elements)

	aFrames := queued(a)
	require.Len(t, aFrames, 1)
	userJoined := decodeAs[models.UserJoinedEvent](t, aFrames[0])
	assert.Equal(t, joined.User, userJoined.User)

	rect := rectangle("rect-1")
	require.NoError(t, f.send(t, a, models.NewDrawingUpdate(models.Elements{rect}, nil)))

	assert.Empty(t, queued(a), "no echo to the sender")
	bFrames = queued(b)
	require.Len(t, bFrames, 1)
	update := decodeAs[models.DrawingUpdateEvent](t, bFrames[0])
	assert.Equal(t, models.Elements{rect}, update.Elements)
	assert.Nil(t, update.CurrentElement)
	assert.Equal(t, models.Elements{rect}, room.Elements)

	f.handler.Leave(ctx, b)

	aFrames = queued(a)
	require.Len(t, aFrames, 1)
	left := decodeAs[models.UserLeftEvent](t, aFrames[0])
	assert.Equal(t, joined.User.ID, left.UserID)
	assert.Equal(t, 1, room.ParticipantCount())
}

func TestJoinUnknownSessionStrict(t *testing.T) {
	f := newProtocolFixture(false)
	c := testConnection("c")

	err := f.send(t, c, models.NewJoinSession("nope", "Ada"))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	frames := queued(c)
	require.Len(t, frames, 1)
	assert.Equal(t, models.NewErrorEvent("Session not found"), decodeAs[models.ErrorEvent](t, frames[0]))
	assert.False(t, c.joined())
	assert.Equal(t, 0, f.registry.Len())
}

func TestJoinUnknownSessionAutoCreate(t *testing.T) {
	f := newProtocolFixture(true)
	c := testConnection("c")

	require.NoError(t, f.send(t, c, models.NewJoinSession("fresh", "Ada")))

	room, err := f.registry.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, room.ParticipantCount())
	assert.Equal(t, models.MessageSessionJoined, frameType(t, queued(c)[0]))
}

func TestJoinBlankNameDefaultsToAnonymous(t *testing.T) {
	f := newProtocolFixture(true)
	c := testConnection("c")

	require.NoError(t, f.send(t, c, models.NewJoinSession("room", "   ")))

	joined := decodeAs[models.SessionJoinedEvent](t, queued(c)[0])
	assert.Equal(t, DefaultUserName, joined.User.Name)
}

func TestLateJoinerReceivesCurrentState(t *testing.T) {
	f := newProtocolFixture(true)

	a := testConnection("a")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	elements := models.Elements{rectangle("r1"), rectangle("r2")}
	require.NoError(t, f.send(t, a, models.NewDrawingUpdate(elements, nil)))

	for i := range 3 {
		late := testConnection(fmt.Sprintf("late-%d", i))
		require.NoError(t, f.send(t, late, models.NewJoinSession("room", "Late")))
		joined := decodeAs[models.SessionJoinedEvent](t, queued(late)[0])
		assert.Equal(t, elements, joined.Elements)
	}
}

func TestJoinLeavesPreviousSession(t *testing.T) {
	f := newProtocolFixture(true)

	a := testConnection("a")
	watcher := testConnection("w")
	require.NoError(t, f.send(t, watcher, models.NewJoinSession("one", "W")))
	require.NoError(t, f.send(t, a, models.NewJoinSession("one", "A")))
	firstUser := a.user
	queued(watcher)
	queued(a)

	require.NoError(t, f.send(t, a, models.NewJoinSession("two", "A")))

	frames := queued(watcher)
	require.Len(t, frames, 1)
	assert.Equal(t, firstUser.ID, decodeAs[models.UserLeftEvent](t, frames[0]).UserID)

	one, _ := f.registry.Get("one")
	two, _ := f.registry.Get("two")
	assert.Equal(t, 1, one.ParticipantCount())
	assert.Equal(t, 1, two.ParticipantCount())
	assert.Equal(t, "two", a.sessionID)
	assert.NotEqual(t, firstUser.ID, a.user.ID, "switching sessions allocates a new user")
}

func TestUnjoinedMessagesAreNoops(t *testing.T) {
	f := newProtocolFixture(true)
	c := testConnection("c")

	assert.NoError(t, f.send(t, c, models.NewDrawingUpdate(models.Elements{rectangle("r")}, nil)))
	assert.NoError(t, f.send(t, c, models.NewCursorMove(models.Point{X: 1, Y: 1})))
	assert.NoError(t, f.send(t, c, models.NewLeaveSession()))
	f.handler.Leave(context.Background(), c)

	assert.Empty(t, queued(c))
}

func TestMalformedFrameIsDroppedAndConnectionKeepsWorking(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	queued(a)
	queued(b)

	ctx := context.Background()
	err := f.handler.HandleMessage(ctx, a, []byte(`{"type":"drawing_update","elements":[`))
	assert.ErrorIs(t, err, apperror.ErrProtocol)
	err = f.handler.HandleMessage(ctx, a, []byte(`not json at all`))
	assert.ErrorIs(t, err, apperror.ErrProtocol)
	err = f.handler.HandleMessage(ctx, a, []byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, apperror.ErrProtocol)

	assert.Empty(t, queued(b), "dropped frames are never broadcast")
	assert.True(t, a.joined())

	require.NoError(t, f.send(t, a, models.NewDrawingUpdate(models.Elements{rectangle("r")}, nil)))
	assert.Len(t, queued(b), 1)
}

func TestInvalidElementListIsDropped(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	require.NoError(t, f.send(t, a, models.NewDrawingUpdate(models.Elements{rectangle("keep")}, nil)))
	queued(b)

	err := f.send(t, a, models.NewDrawingUpdate(models.Elements{rectangle("dup"), rectangle("dup")}, nil))
	assert.ErrorIs(t, err, apperror.ErrProtocol)

	room, _ := f.registry.Get("room")
	assert.Equal(t, []string{"keep"}, room.Elements.IDs())
	assert.Empty(t, queued(b))
}

func TestInvalidCurrentElementLeavesRoomUnchanged(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	require.NoError(t, f.send(t, a, models.NewDrawingUpdate(models.Elements{rectangle("keep")}, nil)))
	queued(b)

	bad := models.Circle{
		Base:   models.Base{ID: "c", Type: models.ToolCircle, Color: "#000000", StrokeWidth: 2, Points: []models.Point{{X: 0, Y: 0}}},
		Radius: -1,
	}
	err := f.send(t, a, models.NewDrawingUpdate(models.Elements{rectangle("r1")}, bad))
	assert.ErrorIs(t, err, apperror.ErrProtocol)

	room, _ := f.registry.Get("room")
	assert.Equal(t, []string{"keep"}, room.Elements.IDs())
	assert.Empty(t, queued(b))

	late := testConnection("late")
	require.NoError(t, f.send(t, late, models.NewJoinSession("room", "Late")))
	joined := decodeAs[models.SessionJoinedEvent](t, queued(late)[0])
	assert.Equal(t, []string{"keep"}, joined.Elements.IDs())
}

func TestRejoinSameSessionKeepsUser(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	watcher := testConnection("w")
	require.NoError(t, f.send(t, watcher, models.NewJoinSession("room", "W")))
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	first := a.user
	queued(watcher)
	queued(a)

	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))

	assert.Empty(t, queued(watcher), "peers see no leave or join")
	frames := queued(a)
	require.Len(t, frames, 1)
	joined := decodeAs[models.SessionJoinedEvent](t, frames[0])
	assert.Equal(t, first, joined.User)
	assert.Equal(t, first, a.user)

	room, _ := f.registry.Get("room")
	assert.Equal(t, 2, room.ParticipantCount())
}

func TestInProgressElementIsRelayed(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	queued(b)

	stroke := models.Stroke{Base: models.Base{
		ID: "s1", Type: models.ToolPen, Color: "#000", StrokeWidth: 3,
		Points: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}}
	require.NoError(t, f.send(t, a, models.NewDrawingUpdate(models.Elements{}, stroke)))

	update := decodeAs[models.DrawingUpdateEvent](t, queued(b)[0])
	assert.Empty(t, update.Elements)
	assert.Equal(t, stroke, update.CurrentElement.Unwrap())

	// "currentElement" on the inbound side is accepted too.
	raw := fmt.Sprintf(`{"type":"drawing_update","elements":[],"currentElement":%s}`, mustJSON(t, stroke))
	require.NoError(t, f.handler.HandleMessage(context.Background(), a, []byte(raw)))
	update = decodeAs[models.DrawingUpdateEvent](t, queued(b)[0])
	assert.Equal(t, stroke, update.CurrentElement.Unwrap())
}

func TestDrawingUpdateConvergesToLastList(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	queued(b)

	var last models.Elements
	for i := range 10 {
		last = append(last.Clone(), rectangle(fmt.Sprintf("r%d", i)))
		require.NoError(t, f.send(t, a, models.NewDrawingUpdate(last, nil)))
	}

	frames := queued(b)
	require.Len(t, frames, 10)
	final := decodeAs[models.DrawingUpdateEvent](t, frames[len(frames)-1])
	assert.Equal(t, last, final.Elements)

	room, _ := f.registry.Get("room")
	assert.Equal(t, last, room.Elements)
}

func TestCursorMove(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	queued(a)
	queued(b)

	require.NoError(t, f.send(t, a, models.NewCursorMove(models.Point{X: 12, Y: 34})))

	assert.Empty(t, queued(a))
	ev := decodeAs[models.CursorMoveEvent](t, queued(b)[0])
	assert.Equal(t, a.user.ID, ev.UserID)
	assert.Equal(t, models.Point{X: 12, Y: 34}, ev.Cursor)

	room, _ := f.registry.Get("room")
	p, ok := room.Participant(a.ID())
	require.True(t, ok)
	require.NotNil(t, p.User.Cursor)
	assert.Equal(t, 12.0, p.User.Cursor.X)
	assert.Empty(t, room.Elements)

	err := f.handler.HandleMessage(context.Background(), a, []byte(`{"type":"cursor_move"}`))
	assert.ErrorIs(t, err, apperror.ErrProtocol)
}

func TestLeaveIsIdempotent(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	b := testConnection("b")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	require.NoError(t, f.send(t, b, models.NewJoinSession("room", "B")))
	queued(a)

	require.NoError(t, f.send(t, b, models.NewLeaveSession()))
	f.handler.Leave(context.Background(), b)

	assert.Len(t, queued(a), 1)
	assert.False(t, b.joined())
}

func TestRoundRobinColorsAreDistinct(t *testing.T) {
	f := newProtocolFixture(true)

	seen := map[string]bool{}
	for i := range len(Palette) {
		c := testConnection(fmt.Sprintf("c%d", i))
		require.NoError(t, f.send(t, c, models.NewJoinSession("room", "U")))
		seen[c.user.Color] = true
	}
	assert.Len(t, seen, len(Palette))
}

func TestPanicInHandlerIsContained(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))

	room, _ := f.registry.Get("room")
	room.addParticipant(&Participant{Peer: panicPeer{id: "boom"}})

	var err error
	assert.NotPanics(t, func() {
		err = f.send(t, a, models.NewDrawingUpdate(models.Elements{rectangle("r")}, nil))
	})
	assert.ErrorIs(t, err, apperror.ErrProtocol)

	room.removeParticipant("boom")
	assert.NoError(t, f.send(t, a, models.NewCursorMove(models.Point{X: 1, Y: 2})))
}

func TestReplaceElementsBroadcastsToEveryone(t *testing.T) {
	f := newProtocolFixture(true)
	a := testConnection("a")
	require.NoError(t, f.send(t, a, models.NewJoinSession("room", "A")))
	queued(a)

	require.NoError(t, f.handler.ReplaceElements("room", models.Elements{rectangle("http")}))
	update := decodeAs[models.DrawingUpdateEvent](t, queued(a)[0])
	assert.Equal(t, []string{"http"}, update.Elements.IDs())

	assert.ErrorIs(t, f.handler.ReplaceElements("missing", nil), apperror.ErrNotFound)
	assert.ErrorIs(t, f.handler.ReplaceElements("room", models.Elements{rectangle("x"), rectangle("x")}), apperror.ErrValidation)
}
