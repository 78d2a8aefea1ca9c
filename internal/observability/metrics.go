package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	MutationRequests *prometheus.CounterVec
	MutationLatency  prometheus.Histogram
	SaveRequests     *prometheus.CounterVec
	PublishRequests  *prometheus.CounterVec
	HistoryEvictions prometheus.Counter
	HistoryBytes     prometheus.Histogram

	opStages *opStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open editing sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		MutationRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_requests_total",
			Help:      "Mutation service calls by outcome.",
		}, []string{"outcome"}),
		MutationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_latency_ms",
			Help:      "Latency of mutation service calls in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		}),
		SaveRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_requests_total",
			Help:      "Persistence calls by outcome.",
		}, []string{"outcome"}),
		PublishRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_requests_total",
			Help:      "Publish calls by outcome.",
		}, []string{"outcome"}),
		HistoryEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_evictions_total",
			Help:      "Undo snapshots evicted under the byte budget.",
		}),
		HistoryBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_bytes",
			Help:      "Total undo-history bytes per session, sampled after each push.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		opStages: newOpStageWindow(256),
	}
}

// ObserveOpLatency records one operation stage duration in both the
// Prometheus histogram (mutation only) and the rolling perf window.
func (m *Metrics) ObserveOpLatency(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	if stage == StageMutationCall {
		m.MutationLatency.Observe(ms)
	}
	m.opStages.Observe(stage, ms)
}

// ObserveIndicator counts a named perf indicator in the rolling window.
func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.opStages.ObserveIndicator(name)
}

// SnapshotOpStages returns the rolling latency window for the perf endpoint.
func (m *Metrics) SnapshotOpStages() OpStageSnapshot {
	if m == nil {
		return OpStageSnapshot{}
	}
	return m.opStages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
