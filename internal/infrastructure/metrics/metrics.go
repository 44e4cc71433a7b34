// Package metrics defines the Prometheus instrumentation for the
// monitoring and settlement paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the registered collectors. One instance per process.
type Metrics struct {
	// EventsIngested counts persisted attention events by type.
	EventsIngested *prometheus.CounterVec

	// BroadcastFailures counts publishes that failed after a successful
	// persist.
	BroadcastFailures prometheus.Counter

	// SettlementRuns counts settlement runs by outcome.
	SettlementRuns *prometheus.CounterVec

	// SettlementDuration observes how long a settlement run takes.
	SettlementDuration prometheus.Histogram

	// ConnectedParticipants tracks live websocket connections.
	ConnectedParticipants prometheus.Gauge

	// FocusRate observes the settled focus rates.
	FocusRate prometheus.Histogram
}

// New registers the collectors against the given registerer. Pass
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classpulse",
			Subsystem: "monitoring",
			Name:      "events_ingested_total",
			Help:      "Attention events persisted, by event type.",
		}, []string{"type"}),

		BroadcastFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "classpulse",
			Subsystem: "monitoring",
			Name:      "broadcast_failures_total",
			Help:      "Alert broadcasts that failed after the event was persisted.",
		}),

		SettlementRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classpulse",
			Subsystem: "settlement",
			Name:      "runs_total",
			Help:      "Settlement runs, by outcome (ok, conflict, error).",
		}, []string{"outcome"}),

		SettlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "classpulse",
			Subsystem: "settlement",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a settlement run.",
			Buckets:   prometheus.DefBuckets,
		}),

		ConnectedParticipants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "classpulse",
			Subsystem: "presence",
			Name:      "connected_participants",
			Help:      "Currently connected participant devices.",
		}),

		FocusRate: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "classpulse",
			Subsystem: "settlement",
			Name:      "focus_rate_percent",
			Help:      "Distribution of settled focus rates.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
	}
}

// All observation helpers tolerate a nil receiver so call sites do not
// need to guard against instrumentation being disabled.

// ObserveIngest records one persisted attention event and whether its
// alert broadcast went through.
func (m *Metrics) ObserveIngest(eventType string, broadcastOK bool) {
	if m == nil {
		return
	}
	m.EventsIngested.WithLabelValues(eventType).Inc()
	if !broadcastOK {
		m.BroadcastFailures.Inc()
	}
}

// Settlement run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// ObserveSettlementRun records one settlement run's outcome and duration.
func (m *Metrics) ObserveSettlementRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SettlementRuns.WithLabelValues(outcome).Inc()
	m.SettlementDuration.Observe(elapsed.Seconds())
}

// ObserveFocusRate records one participant's settled focus rate.
func (m *Metrics) ObserveFocusRate(percent int) {
	if m == nil {
		return
	}
	m.FocusRate.Observe(float64(percent))
}

// DeviceConnected and DeviceDisconnected move the live-connection gauge.
func (m *Metrics) DeviceConnected() {
	if m == nil {
		return
	}
	m.ConnectedParticipants.Inc()
}

func (m *Metrics) DeviceDisconnected() {
	if m == nil {
		return
	}
	m.ConnectedParticipants.Dec()
}
