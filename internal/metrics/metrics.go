// Package metrics exposes Prometheus collectors for the server lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sirosfoundation/go-local-server/internal/domain"
)

// StopReason labels why the listener was stopped
type StopReason string

const (
	StopUser    StopReason = "user"
	StopDetach  StopReason = "detach"
	StopNetwork StopReason = "network"
)

// Metrics holds the lifecycle collectors. A nil *Metrics records nothing.
type Metrics struct {
	starts       prometheus.Counter
	stops        *prometheus.CounterVec
	errors       *prometheus.CounterVec
	running      prometheus.Gauge
	viewAttached prometheus.Gauge
}

// New registers the lifecycle collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		starts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "localsrv",
			Name:      "server_starts_total",
			Help:      "Total number of successful listener starts",
		}),
		stops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localsrv",
			Name:      "server_stops_total",
			Help:      "Total number of listener stops by reason",
		}, []string{"reason"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localsrv",
			Name:      "lifecycle_errors_total",
			Help:      "Total number of errors reported to the view by kind",
		}, []string{"kind"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "localsrv",
			Name:      "server_running",
			Help:      "1 while the listener is serving",
		}),
		viewAttached: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "localsrv",
			Name:      "view_attached",
			Help:      "1 while a view is attached to the coordinator",
		}),
	}
}

// ServerStarted records a successful start
func (m *Metrics) ServerStarted() {
	if m == nil {
		return
	}
	m.starts.Inc()
	m.running.Set(1)
}

// ServerStopped records a stop
func (m *Metrics) ServerStopped(reason StopReason) {
	if m == nil {
		return
	}
	m.stops.WithLabelValues(string(reason)).Inc()
	m.running.Set(0)
}

// Error records an error reported to the view
func (m *Metrics) Error(kind domain.ErrorKind) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind.String()).Inc()
}

// ViewAttached sets the attachment gauge
func (m *Metrics) ViewAttached(attached bool) {
	if m == nil {
		return
	}
	if attached {
		m.viewAttached.Set(1)
	} else {
		m.viewAttached.Set(0)
	}
}
