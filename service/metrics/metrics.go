package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Wallet provider metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec

	// Contract binding metrics
	contractCallsTotal   *prometheus.CounterVec
	contractCallDuration *prometheus.HistogramVec

	// Mint lifecycle metrics
	mintOperationsTotal *prometheus.CounterVec
	mintDuration        *prometheus.HistogramVec
	mintCounter         prometheus.Gauge
	mintEventsReceived  *prometheus.CounterVec
	sessionTransitions  *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		providerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_provider_requests_total",
				Help: "Total number of wallet provider JSON-RPC requests by method and status",
			},
			[]string{"method", "status"},
		),
		providerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_provider_request_duration_seconds",
				Help:    "Duration of wallet provider JSON-RPC requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		contractCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_calls_total",
				Help: "Total number of contract binding calls by method and status",
			},
			[]string{"method", "status"},
		),
		contractCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_call_duration_seconds",
				Help:    "Duration of contract binding calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"method"},
		),

		mintOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mint_operations_total",
				Help: "Total number of mint operations by final status and error kind",
			},
			[]string{"status", "kind"},
		),
		mintDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mint_operation_duration_seconds",
				Help:    "Time from signature request to terminal state in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		mintCounter: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mint_counter",
				Help: "Number of NFTs minted so far as mirrored from the contract",
			},
		),
		mintEventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mint_events_received_total",
				Help: "Total number of contract mint events received",
			},
			[]string{"outcome"},
		),
		sessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_session_operations_total",
				Help: "Total number of wallet session operations by operation and result",
			},
			[]string{"operation", "result"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Wallet provider metric helpers

// RecordProviderRequest records a wallet provider request with duration.
func (m *Metrics) RecordProviderRequest(method string, err error, duration float64) {
	m.providerRequestsTotal.WithLabelValues(method, errStatus(err)).Inc()
	m.providerRequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordContractCall records a contract binding call with duration.
func (m *Metrics) RecordContractCall(method string, err error, duration float64) {
	m.contractCallsTotal.WithLabelValues(method, errStatus(err)).Inc()
	m.contractCallDuration.WithLabelValues(method).Observe(duration)
}

// Mint lifecycle metric helpers

// RecordMintOperation records a mint operation reaching a terminal or rejected state.
// kind is empty for successful mints.
func (m *Metrics) RecordMintOperation(status, kind string) {
	m.mintOperationsTotal.WithLabelValues(status, kind).Inc()
}

// RecordMintDuration records how long a mint took from signature request to terminal state.
func (m *Metrics) RecordMintDuration(status string, duration float64) {
	m.mintDuration.WithLabelValues(status).Observe(duration)
}

// SetMintCounter records the mirrored minted count.
func (m *Metrics) SetMintCounter(value uint64) {
	m.mintCounter.Set(float64(value))
}

// RecordMintEvent records a mint event; outcome is "advanced" or "stale".
func (m *Metrics) RecordMintEvent(outcome string) {
	m.mintEventsReceived.WithLabelValues(outcome).Inc()
}

// RecordSessionOperation records a restore/connect/network check result.
func (m *Metrics) RecordSessionOperation(operation, result string) {
	m.sessionTransitions.WithLabelValues(operation, result).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
