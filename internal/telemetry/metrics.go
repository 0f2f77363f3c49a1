package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus метрики оркестратора.
//
// Nil *Metrics допустим: все методы становятся no-op.
type Metrics struct {
	requests       *prometheus.CounterVec
	nodeCalls      *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	inflightGraphs prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики в reg.
// Для production передаётся prometheus.DefaultRegisterer,
// в тестах — prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "megaflow_requests_total",
			Help: "Chat requests handled by the orchestrator, by final status",
		}, []string{"status"}),
		nodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "megaflow_node_invocations_total",
			Help: "Remote service invocations, by node and outcome",
		}, []string{"node", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "megaflow_node_invocation_duration_seconds",
			Help:    "Remote service invocation latency (until full body or first byte of a stream)",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "megaflow_http_requests_total",
			Help: "HTTP requests handled by the API, by route and status code",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "megaflow_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		inflightGraphs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "megaflow_inflight_schedules",
			Help: "Flow graph executions currently in progress",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.requests,
			m.nodeCalls,
			m.nodeDuration,
			m.httpRequests,
			m.httpDuration,
			m.inflightGraphs,
		)
	}

	return m
}

// ObserveRequest учитывает обработанный chat-запрос.
func (m *Metrics) ObserveRequest(status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
}

// ObserveNode учитывает вызов узла.
func (m *Metrics) ObserveNode(node, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeCalls.WithLabelValues(node, outcome).Inc()
	m.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// ObserveHTTP учитывает HTTP-запрос к API.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusLabel(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ScheduleStarted и ScheduleFinished отслеживают выполнения графа в процессе.
func (m *Metrics) ScheduleStarted() {
	if m == nil {
		return
	}
	m.inflightGraphs.Inc()
}

func (m *Metrics) ScheduleFinished() {
	if m == nil {
		return
	}
	m.inflightGraphs.Dec()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
