// Package monitoring exposes engine metrics to Prometheus and keeps a snapshot of ad-hoc values
// for the status endpoints.
package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bellavista/internal/gateway"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

const namespace = "bellavista"

// Monitor collects and provides metrics for the ordering engine
type Monitor struct {
	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time

	registry        *prometheus.Registry
	matches         *prometheus.CounterVec
	actions         *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	dropped         prometheus.Counter
	sessions        prometheus.Gauge
	aiStatus        *prometheus.GaugeVec
	evaluation      *prometheus.GaugeVec
}

// NewMonitor creates a new monitoring instance with its own registry
func NewMonitor() *Monitor {
	m := &Monitor{
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),

		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_matches_total",
			Help:      "Menu matcher lookups by winning strategy",
		}, []string{"strategy"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_actions_total",
			Help:      "Actions applied to carts",
		}, []string{"action", "changed"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Requests to the AI chatbot service",
		}, []string{"endpoint", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Latency of AI chatbot service requests",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"endpoint"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by the source that answered them",
		}, []string{"source"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time from user input to queued reply",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Assistant messages discarded because their turn was superseded",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open chat sessions",
		}),
		aiStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ai_status",
			Help:      "1 for the current AI service status, 0 otherwise",
		}, []string{"status"}),
		evaluation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_score",
			Help:      "Scores of the last corpus evaluation",
		}, []string{"suite", "metric"}),
	}

	m.registry.MustRegister(
		m.matches, m.actions, m.gatewayRequests, m.gatewayLatency,
		m.turns, m.turnLatency, m.dropped, m.sessions, m.aiStatus, m.evaluation,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMatch counts a matcher lookup
func (m *Monitor) ObserveMatch(s matching.Strategy) {
	m.matches.WithLabelValues(s.String()).Inc()
}

// ObserveAction counts an applied cart action
func (m *Monitor) ObserveAction(kind models.ActionKind, changed bool) {
	m.actions.WithLabelValues(string(kind), strconv.FormatBool(changed)).Inc()
}

// ObserveGateway records one AI service request
func (m *Monitor) ObserveGateway(endpoint string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayRequests.WithLabelValues(endpoint, outcome).Inc()
	m.gatewayLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveTurn records a finished conversation turn
func (m *Monitor) ObserveTurn(source string, elapsed time.Duration) {
	m.turns.WithLabelValues(source).Inc()
	m.turnLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveDropped counts a discarded assistant message
func (m *Monitor) ObserveDropped() {
	m.dropped.Inc()
}

// SetSessions sets the number of open sessions
func (m *Monitor) SetSessions(n int) {
	m.sessions.Set(float64(n))
	m.RecordMetric("active_sessions", n)
}

// SetAIStatus marks status as the current AI service status
func (m *Monitor) SetAIStatus(status gateway.Status) {
	for _, s := range []gateway.Status{gateway.StatusConnected, gateway.StatusRateLimited, gateway.StatusDisconnected, gateway.StatusChecking} {
		value := 0.0
		if s == status {
			value = 1
		}
		m.aiStatus.WithLabelValues(string(s)).Set(value)
	}
	m.RecordMetric("ai_status", string(status))
}

// RecordMetric records a metric value
func (m *Monitor) RecordMetric(name string, value interface{}) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

// GetMetric returns a specific metric value
func (m *Monitor) GetMetric(name string) (interface{}, bool) {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()
	value, exists := m.metrics[name]
	return value, exists
}

// GetMetrics returns all current metrics
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	metrics := make(map[string]interface{}, len(m.metrics)+1)
	for k, v := range m.metrics {
		metrics[k] = v
	}
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()
	return metrics
}

// Reset clears the snapshot metrics. Prometheus collectors are cumulative and kept.
func (m *Monitor) Reset() {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics = make(map[string]interface{})
}

// RecordEvaluationResult records the scores of a corpus evaluation run
func (m *Monitor) RecordEvaluationResult(suite string, scores map[string]float64) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	prefix := suite + "_"
	for k, v := range scores {
		m.metrics[prefix+k] = v
		m.evaluation.WithLabelValues(suite, k).Set(v)
	}
	m.metrics[prefix+"last_evaluated"] = time.Now().Format(time.RFC3339)
}
