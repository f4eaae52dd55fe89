package utils

import (
	"context"
	"errors"
	"time"

	"pagoda/models"
	"pagoda/services/bookingapi"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	OutcomesTotal  *prometheus.CounterVec   // state=confirmed|expired|cancelled
	BackendTotal   *prometheus.CounterVec   // op=reserve|confirm, result=success|rejected|error
	BackendLatency *prometheus.HistogramVec // op=reserve|confirm
	PagesOpen      prometheus.Gauge
	SnapshotErrors prometheus.Counter
	ReceiptsQueued prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "light_session_outcomes_total",
				Help: "Terminal reservation sessions by final state",
			},
			[]string{"state"},
		),
		BackendTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "light_backend_requests_total",
				Help: "Booking API calls by operation and result",
			},
			[]string{"op", "result"},
		),
		BackendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "light_backend_latency_ms",
				Help:    "Latency of Booking API calls (ms)",
				Buckets: prometheus.ExponentialBuckets(5, 2, 12), // 5ms .. ~10s
			},
			[]string{"op"},
		),
		PagesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "light_pages_open",
			Help: "Number of booking pages currently hosted",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "light_snapshot_mirror_errors_total",
			Help: "Failed writes of page snapshots to redis",
		}),
		ReceiptsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "light_receipts_queued_total",
			Help: "Receipt push tasks handed to the queue",
		}),
	}

	reg.MustRegister(
		m.OutcomesTotal,
		m.BackendTotal,
		m.BackendLatency,
		m.PagesOpen,
		m.SnapshotErrors,
		m.ReceiptsQueued,
	)
	return m
}

// RecordOutcome counts a terminal session.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome models.SessionOutcome) {
	m.OutcomesTotal.WithLabelValues(string(outcome.State)).Inc()
}

// ObserveBackend records one Booking API call.
func (m *Metrics) ObserveBackend(op string, elapsed time.Duration, err error) {
	result := "success"
	var apiErr *bookingapi.APIError
	switch {
	case errors.As(err, &apiErr):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	m.BackendTotal.WithLabelValues(op, result).Inc()
	m.BackendLatency.WithLabelValues(op).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) PageOpened()           { m.PagesOpen.Inc() }
func (m *Metrics) PageClosed()           { m.PagesOpen.Dec() }
func (m *Metrics) SnapshotMirrorFailed() { m.SnapshotErrors.Inc() }
func (m *Metrics) ReceiptQueued()        { m.ReceiptsQueued.Inc() }
