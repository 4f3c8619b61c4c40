// Package metrics exposes Prometheus instruments for the release and
// relationship lifecycle. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application's Prometheus instruments.
type Metrics struct {
	// Confirmation attempts by outcome
	ConfirmationOutcome *prometheus.CounterVec

	// Media shares created by release cascades
	MediaGrants prometheus.Counter

	ReconcileRegistered prometheus.Counter
	ReconcileFailures   prometheus.Counter
	ReconcileDuration   prometheus.Histogram

	// Notification deliveries by channel and result
	Deliveries *prometheus.CounterVec
}

// New registers every instrument with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConfirmationOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afterword_deceased_confirmations_total",
			Help: "Deceased confirmation attempts by outcome",
		}, []string{"outcome"}),

		MediaGrants: f.NewCounter(prometheus.CounterOpts{
			Name: "afterword_release_media_grants_total",
			Help: "Video shares created by release cascades",
		}),

		ReconcileRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "afterword_reconcile_registered_total",
			Help: "Contacts moved to registered by the reconciliation sweep",
		}),

		ReconcileFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "afterword_reconcile_resolve_failures_total",
			Help: "Identity lookups that failed during the reconciliation sweep",
		}),

		ReconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "afterword_reconcile_duration_seconds",
			Help:    "Duration of a full reconciliation sweep",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afterword_notification_deliveries_total",
			Help: "Notification deliveries by channel and result",
		}, []string{"channel", "result"}),
	}
}

// IncrementConfirmation records one deceased-confirmation attempt.
func (m *Metrics) IncrementConfirmation(outcome string) {
	if m != nil {
		m.ConfirmationOutcome.WithLabelValues(outcome).Inc()
	}
}

// AddMediaGrants records shares created by a release.
func (m *Metrics) AddMediaGrants(n int) {
	if m != nil && n > 0 {
		m.MediaGrants.Add(float64(n))
	}
}

// ObserveReconcile records the result of one sweep.
func (m *Metrics) ObserveReconcile(registered, failures int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileRegistered.Add(float64(registered))
	m.ReconcileFailures.Add(float64(failures))
	m.ReconcileDuration.Observe(d.Seconds())
}

// IncrementDelivery records one notification delivery result.
func (m *Metrics) IncrementDelivery(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Deliveries.WithLabelValues(channel, result).Inc()
}
