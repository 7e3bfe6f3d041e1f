package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordGeneration(t *testing.T) {
	GenerationRequestsTotal.Reset()

	RecordGeneration(OutcomeSuccess, 1.5)
	RecordGeneration(OutcomeSuccess, 2)
	RecordGeneration(OutcomeBackendError, 0.5)

	if got := testutil.ToFloat64(GenerationRequestsTotal.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("Expected success counter to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(GenerationRequestsTotal.WithLabelValues(OutcomeBackendError)); got != 1 {
		t.Errorf("Expected backend_error counter to be 1, got %f", got)
	}
}

func TestRecordCredits(t *testing.T) {
	reserved := testutil.ToFloat64(CreditsReservedTotal)
	refunded := testutil.ToFloat64(CreditsRefundedTotal)

	RecordReserved(3)
	RecordReserved(0)
	RecordRefunded(2)

	if got := testutil.ToFloat64(CreditsReservedTotal) - reserved; got != 3 {
		t.Errorf("Expected 3 reserved credits, got %f", got)
	}
	if got := testutil.ToFloat64(CreditsRefundedTotal) - refunded; got != 2 {
		t.Errorf("Expected 2 refunded credits, got %f", got)
	}
}

func TestRecordBackendError(t *testing.T) {
	BackendErrorsTotal.Reset()

	RecordBackendError("volcengine")
	RecordBackendError("volcengine")

	if got := testutil.ToFloat64(BackendErrorsTotal.WithLabelValues("volcengine")); got != 2 {
		t.Errorf("Expected 2 backend errors, got %f", got)
	}
}
