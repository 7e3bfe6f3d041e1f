package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes
const (
	OutcomeSuccess             = "success"
	OutcomeInvalid             = "invalid_request"
	OutcomeInsufficientCredits = "insufficient_credits"
	OutcomeBackendError        = "backend_error"
	OutcomePersistenceError    = "persistence_error"
	OutcomeUnauthenticated     = "unauthenticated"
	OutcomeInternalError       = "internal_error"
)

var (
	GenerationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artsheets_generation_requests_total",
			Help: "Total number of sheet generation requests by outcome",
		},
		[]string{"outcome"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artsheets_generation_duration_seconds",
			Help:    "End to end duration of sheet generation requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		},
	)

	CreditsReservedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artsheets_credits_reserved_total",
			Help: "Total number of credits reserved ahead of generation",
		},
	)

	CreditsRefundedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artsheets_credits_refunded_total",
			Help: "Total number of credits returned by rollbacks",
		},
	)

	SheetsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artsheets_sheets_created_total",
			Help: "Total number of persisted sheets",
		},
	)

	BackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artsheets_backend_errors_total",
			Help: "Total number of failed generation backend calls",
		},
		[]string{"backend"},
	)
)

// RecordGeneration records the outcome and duration of one generation request.
func RecordGeneration(outcome string, seconds float64) {
	GenerationRequestsTotal.WithLabelValues(outcome).Inc()
	GenerationDuration.Observe(seconds)
}

// RecordReserved counts credits debited by a reservation.
func RecordReserved(credits int) {
	if credits > 0 {
		CreditsReservedTotal.Add(float64(credits))
	}
}

// RecordRefunded counts credits returned by a rollback.
func RecordRefunded(credits int) {
	if credits > 0 {
		CreditsRefundedTotal.Add(float64(credits))
	}
}

// RecordSheetsCreated counts persisted sheets.
func RecordSheetsCreated(n int) {
	if n > 0 {
		SheetsCreatedTotal.Add(float64(n))
	}
}

// RecordBackendError counts a failed backend call.
func RecordBackendError(backend string) {
	BackendErrorsTotal.WithLabelValues(backend).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
