package chat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe so tests can run the router without a registry.
type Metrics struct {
	activeSessions prometheus.Gauge
	onlineUsers    prometheus.Gauge
	sessionTotal   prometheus.Counter
	authRejected   prometheus.Counter
	messages       *prometheus.CounterVec
	deliveries     prometheus.Counter
	drops          *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jircord_sessions_active",
			Help: "Current number of registered sessions.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jircord_users_online",
			Help: "Current number of identities with at least one session.",
		}),
		sessionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jircord_sessions_total",
			Help: "Sessions registered since start.",
		}),
		authRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jircord_handshakes_rejected_total",
			Help: "Handshakes refused as unauthorized.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jircord_messages_total",
			Help: "Chat messages relayed, by channel kind.",
		}, []string{"channel"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jircord_deliveries_total",
			Help: "Frames queued on sessions.",
		}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jircord_frames_dropped_total",
			Help: "Frames dropped, by reason.",
		}, []string{"reason"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jircord_store_errors_total",
			Help: "Message log failures, by operation.",
		}, []string{"op"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jircord_store_latency_seconds",
			Help:    "Message log latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.activeSessions,
		m.onlineUsers,
		m.sessionTotal,
		m.authRejected,
		m.messages,
		m.deliveries,
		m.drops,
		m.storeErrors,
		m.storeLatency,
	)
	return m
}

func (m *Metrics) setPresence(sessions, users int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(sessions))
	m.onlineUsers.Set(float64(users))
}

func (m *Metrics) incSession() {
	if m == nil {
		return
	}
	m.sessionTotal.Inc()
}

func (m *Metrics) recordRejected() {
	if m == nil {
		return
	}
	m.authRejected.Inc()
}

func (m *Metrics) recordMessage(global bool) {
	if m == nil {
		return
	}
	kind := "dm"
	if global {
		kind = "global"
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordDeliveries(n int) {
	if m == nil || n == 0 {
		return
	}
	m.deliveries.Add(float64(n))
}

func (m *Metrics) recordDrop(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.drops.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeStore(op string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(op).Observe(dur.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}
