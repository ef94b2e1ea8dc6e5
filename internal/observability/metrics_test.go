package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordRound("metrics-test", "ok", 1500*time.Microsecond)
	RecordPhaseMean("metrics-test", 1500)
	RecordFrames("metrics-test", "tx", 4)
	RecordIntegrityFailure("metrics-test")
	RecordHTTPRequest("initiator", "GET", "/health", 200, 2*time.Millisecond)

	if got := testutil.ToFloat64(roundsTotal.WithLabelValues("metrics-test", "ok")); got != 1 {
		t.Fatalf("unexpected rounds_total: %v", got)
	}
	if got := testutil.ToFloat64(framesTotal.WithLabelValues("metrics-test", "tx")); got != 4 {
		t.Fatalf("unexpected frames_total: %v", got)
	}
	if got := testutil.ToFloat64(phaseMean.WithLabelValues("metrics-test")); got != 1500 {
		t.Fatalf("unexpected phase mean: %v", got)
	}

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}
