package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the emission pipeline
type Metrics struct {
	Emissions        *prometheus.CounterVec
	ValidationErrors prometheus.Counter
	SubmitDuration   *prometheus.HistogramVec
	CertDaysToExpiry prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Emissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfse_emissions_total",
			Help: "DPS emission attempts by environment and outcome",
		}, []string{"environment", "outcome"}),
		ValidationErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "nfse_validation_errors_total",
			Help: "Emission requests rejected by local validation",
		}),
		SubmitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfse_submit_duration_seconds",
			Help:    "Time spent waiting on the national service",
			Buckets: prometheus.DefBuckets,
		}, []string{"environment"}),
		CertDaysToExpiry: f.NewGauge(prometheus.GaugeOpts{
			Name: "nfse_certificate_days_to_expiry",
			Help: "Days until the signing certificate expires",
		}),
	}
}

// RecordOutcome counts one emission attempt. outcome is accepted, rejected,
// simulated, or error.
func (m *Metrics) RecordOutcome(environment, outcome string) {
	if m == nil {
		return
	}
	m.Emissions.WithLabelValues(environment, outcome).Inc()
}

// RecordValidationError counts a request that failed local validation
func (m *Metrics) RecordValidationError() {
	if m == nil {
		return
	}
	m.ValidationErrors.Inc()
}

// ObserveSubmit records how long a submission took
func (m *Metrics) ObserveSubmit(environment string, d time.Duration) {
	if m == nil {
		return
	}
	m.SubmitDuration.WithLabelValues(environment).Observe(d.Seconds())
}

// SetCertDaysToExpiry publishes the signing certificate's remaining validity
func (m *Metrics) SetCertDaysToExpiry(days int) {
	if m == nil {
		return
	}
	m.CertDaysToExpiry.Set(float64(days))
}
