package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.MessageReceived("drawing_update")
	m.MessageReceived("drawing_update")
	m.MessageDropped(DropMalformed)
	m.Broadcast(3)
	m.Broadcast(0)
	m.SessionsSwept(2)
	m.SessionsSwept(0)
	m.SetActive(4, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesReceived.WithLabelValues("drawing_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesDropped.WithLabelValues(DropMalformed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.broadcasts))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.broadcastRecipients))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsSwept))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.participantsActive))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageReceived("cursor_move")
		m.MessageDropped(DropPanic)
		m.Broadcast(1)
		m.SessionsSwept(1)
		m.SetActive(1, 1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetActive(1, 2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sparkboard_sessions_active 1")
	assert.Contains(t, string(body), "sparkboard_participants_active 2")
}
