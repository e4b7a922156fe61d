// Package metrics defines the Prometheus collectors of the PaySplit server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/subodh038/paysplit/internal/notify"
)

const namespace = "paysplit"

// Metrics holds every collector. Create it once per registry.
type Metrics struct {
	RPCRequests    *prometheus.CounterVec
	RPCDuration    *prometheus.HistogramVec
	Payments       *prometheus.CounterVec
	AuthAttempts   *prometheus.CounterVec
	SplitEvents    *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPCs handled, by procedure and Connect code.",
		}, []string{"procedure", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		Payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by outcome.",
		}, []string{"outcome"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Wallet sign-in attempts by result.",
		}, []string{"result"}),
		SplitEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_events_total",
			Help:      "Split state changes by kind.",
		}, []string{"kind"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions signed in and not signed out since start.",
		}),
	}
}

// TrackSessions keeps ActiveSessions in step with hub.
func (m *Metrics) TrackSessions(hub *notify.Hub[notify.SessionEvent]) (unsubscribe func()) {
	return hub.Subscribe(func(ev notify.SessionEvent) {
		switch ev.Kind {
		case notify.SignedIn:
			m.ActiveSessions.Inc()
		case notify.SignedOut:
			m.ActiveSessions.Dec()
		}
	})
}

// TrackSplits counts the split events published on hub.
func (m *Metrics) TrackSplits(hub *notify.Hub[notify.SplitEvent]) (unsubscribe func()) {
	return hub.Subscribe(func(ev notify.SplitEvent) {
		m.SplitEvents.WithLabelValues(string(ev.Kind)).Inc()
	})
}
