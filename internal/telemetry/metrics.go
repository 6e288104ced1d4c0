package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sparkboard"

// Reasons an inbound frame is dropped.
const (
	DropMalformed   = "malformed"
	DropUnknownType = "unknown_type"
	DropInvalid     = "invalid"
	DropPanic       = "panic"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	sessionsActive      prometheus.Gauge
	participantsActive  prometheus.Gauge
	messagesReceived    *prometheus.CounterVec
	messagesDropped     *prometheus.CounterVec
	broadcasts          prometheus.Counter
	broadcastRecipients prometheus.Counter
	sessionsSwept       prometheus.Counter
}

// NewMetrics registers the relay collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in the registry.",
		}),
		participantsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants_active",
			Help:      "Connections currently joined to a session.",
		}),
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound protocol frames by message type.",
		}, []string{"type"}),
		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound frames dropped without processing.",
		}, []string{"reason"}),
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages fanned out to a session.",
		}),
		broadcastRecipients: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_recipients_total",
			Help:      "Connections a broadcast was delivered to, summed.",
		}),
		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Idle sessions removed by the sweeper.",
		}),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Broadcast(recipients int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.broadcastRecipients.Add(float64(recipients))
}

func (m *Metrics) SessionsSwept(n int) {
	if m == nil || n == 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

// SetActive records the registry's current size.
func (m *Metrics) SetActive(sessions, participants int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(sessions))
	m.participantsActive.Set(float64(participants))
}
