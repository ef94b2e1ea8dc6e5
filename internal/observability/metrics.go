package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	roundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "canlat",
			Subsystem: "exchange",
			Name:      "round_duration_seconds",
			Help:      "Round trip time of one exchange round.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"phase", "outcome"},
	)
	roundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canlat",
			Subsystem: "exchange",
			Name:      "rounds_total",
			Help:      "Exchange rounds by phase and outcome.",
		},
		[]string{"phase", "outcome"},
	)
	phaseMean = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "canlat",
			Subsystem: "exchange",
			Name:      "phase_mean_microseconds",
			Help:      "Mean round time over the kept samples of a completed phase.",
		},
		[]string{"phase"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canlat",
			Subsystem: "bus",
			Name:      "frames_total",
			Help:      "Frames moved over the bus.",
		},
		[]string{"node", "direction"},
	)
	integrityFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canlat",
			Subsystem: "exchange",
			Name:      "integrity_failures_total",
			Help:      "Digest verification failures seen by the responder.",
		},
		[]string{"phase"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canlat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "canlat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(roundDuration, roundsTotal, phaseMean, framesTotal, integrityFailures, httpRequests, httpDuration)
	})
}

func RecordRound(phase, outcome string, elapsed time.Duration) {
	RegisterMetrics()
	roundsTotal.WithLabelValues(phase, outcome).Inc()
	roundDuration.WithLabelValues(phase, outcome).Observe(elapsed.Seconds())
}

func RecordPhaseMean(phase string, meanMicros float64) {
	RegisterMetrics()
	phaseMean.WithLabelValues(phase).Set(meanMicros)
}

func RecordFrames(node, direction string, n int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(node, direction).Add(float64(n))
}

func RecordIntegrityFailure(phase string) {
	RegisterMetrics()
	integrityFailures.WithLabelValues(phase).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
