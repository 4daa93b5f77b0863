package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

const (
	// OutcomeSuccess labels requests that produced an answer.
	OutcomeSuccess = "success"
	// OutcomeClientError labels requests rejected for invalid input.
	OutcomeClientError = "client_error"
	// OutcomeError labels failed requests (pipeline or dependency issues).
	OutcomeError = "error"
)

const namespace = "uavlog"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of chat and analysis requests, partitioned by route and outcome.",
		},
		[]string{"route", "outcome"},
	)

	requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
		},
		[]string{"route"},
	)

	upstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to the language model, embedding and rerank services, partitioned by outcome.",
		},
		[]string{"service", "outcome"},
	)

	embeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups partitioned by result (hit, shared_hit, miss).",
		},
		[]string{"result"},
	)

	anomalyFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomaly_flags_total",
			Help:      "Anomaly flags raised by the detector, partitioned by pattern.",
		},
		[]string{"pattern"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversation_sessions",
			Help:      "Number of live conversation sessions.",
		},
	)
)

// Register attaches uavlog collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		requestsTotal,
		requestDurationSeconds,
		upstreamCallsTotal,
		embeddingCacheTotal,
		anomalyFlagsTotal,
		activeSessions,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records a request duration and outcome for route ("chat" or "analysis").
func ObserveRequest(route string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeClientError:
	default:
		outcome = OutcomeSuccess
	}
	requestsTotal.WithLabelValues(route, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	requestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveUpstream counts one outbound call to service.
func ObserveUpstream(service string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	upstreamCallsTotal.WithLabelValues(service, outcome).Inc()
}

// ObserveEmbeddingCache counts an embedding cache lookup result.
func ObserveEmbeddingCache(result string) {
	embeddingCacheTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions reports the conversation store size.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordFlagSummaries adds summarized detector output to the anomaly counters.
// Its signature matches patterns.SinkFunc.
func RecordFlagSummaries(_ context.Context, summaries []models.FlagSummary) error {
	for _, s := range summaries {
		anomalyFlagsTotal.WithLabelValues(string(s.Pattern)).Add(float64(s.Count))
	}
	return nil
}
