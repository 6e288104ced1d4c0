package collaboration

import (
	"testing"
	"time"

	"sparkboard/internal/logging"
	"sparkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastExcludesSenderAndSkipsClosed(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(RegistryConfig{Now: clock.Now})
	relay := NewRelay(reg, nil, logging.Discard())

	room, err := reg.Create("room0001")
	require.NoError(t, err)

	sender := &fakePeer{id: "a"}
	other := &fakePeer{id: "b"}
	third := &fakePeer{id: "c"}
	gone := &fakePeer{id: "d", closed: true}
	for _, p := range []*fakePeer{sender, other, third, gone} {
		room.addParticipant(&Participant{Peer: p})
	}

	clock.Advance(time.Minute)
	sent := relay.Broadcast(room, models.NewUserLeft("u1"), "a")

	assert.Equal(t, 2, sent)
	assert.Empty(t, sender.got)
	assert.Empty(t, gone.got)
	require.Len(t, other.got, 1)
	require.Len(t, third.got, 1)
	assert.JSONEq(t, `{"type":"user_left","userId":"u1"}`, string(other.got[0]))
	assert.Equal(t, other.got[0], third.got[0])
	assert.Equal(t, clock.Now(), room.LastActivity)
}

func TestBroadcastCountsOnlyAcceptedSends(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})
	relay := NewRelay(reg, nil, logging.Discard())
	room, _ := reg.Create("")

	room.addParticipant(&Participant{Peer: &fakePeer{id: "a", full: true}})
	room.addParticipant(&Participant{Peer: &fakePeer{id: "b"}})

	assert.Equal(t, 1, relay.Broadcast(room, models.NewUserLeft("x"), ""))
}

func TestSendSkipsClosedPeer(t *testing.T) {
	relay := NewRelay(NewRegistry(RegistryConfig{}), nil, logging.Discard())

	closed := &fakePeer{id: "a", closed: true}
	assert.False(t, relay.Send(closed, models.NewErrorEvent("x")))
	assert.Empty(t, closed.got)

	open := &fakePeer{id: "b"}
	assert.True(t, relay.Send(open, models.NewErrorEvent("x")))
	assert.Len(t, open.got, 1)
}
