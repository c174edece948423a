package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nexus"

// Metrics holds the service's prometheus collectors. Every Record method is
// safe on a nil receiver so components can run without instrumentation.
type Metrics struct {
	CodesIssued       prometheus.Counter
	CodeConsumptions  *prometheus.CounterVec
	CodesExpired      prometheus.Counter
	CodesInvalidated  *prometheus.CounterVec
	RateLimited       prometheus.Counter
	OpenConnections   prometheus.Gauge
	MessagesTotal     *prometheus.CounterVec
	MessageDuration   *prometheus.HistogramVec
	TelemetryRecorded *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
}

// New creates the collectors without registering them
func New() *Metrics {
	return &Metrics{
		CodesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_codes_issued_total",
			Help:      "Verification codes issued",
		}),
		CodeConsumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_code_consumptions_total",
			Help:      "Code consumption attempts by outcome",
		}, []string{"result"}),
		CodesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_codes_expired_total",
			Help:      "Pending codes moved to expired by the sweeper or lazily on consume",
		}),
		CodesInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_codes_invalidated_total",
			Help:      "Pending codes invalidated, by reason",
		}, []string{"reason"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_code_requests_rate_limited_total",
			Help:      "Code requests rejected by the issuance guard",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_open_connections",
			Help:      "Open game-server websocket connections",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Inbound websocket messages by event and result",
		}, []string{"event", "result"}),
		MessageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ws_message_duration_seconds",
			Help:      "Dispatched message handling latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		TelemetryRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_breaks_total",
			Help:      "Block break telemetry events by result",
		}, []string{"result"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_code_sweep_duration_seconds",
			Help:      "Expiry sweep run time",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register adds every collector to registerer
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.CodesIssued,
		m.CodeConsumptions,
		m.CodesExpired,
		m.CodesInvalidated,
		m.RateLimited,
		m.OpenConnections,
		m.MessagesTotal,
		m.MessageDuration,
		m.TelemetryRecorded,
		m.SweepDuration,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

func (m *Metrics) RecordCodeIssued() {
	if m == nil {
		return
	}
	m.CodesIssued.Inc()
}

func (m *Metrics) RecordConsumption(result string) {
	if m == nil {
		return
	}
	m.CodeConsumptions.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CodesExpired.Add(float64(n))
}

func (m *Metrics) RecordInvalidated(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CodesInvalidated.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.OpenConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.OpenConnections.Dec()
}

// RecordMessage counts one inbound message; duration is in seconds and skipped when negative
func (m *Metrics) RecordMessage(event, result string, duration float64) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(event, result).Inc()
	if duration >= 0 {
		m.MessageDuration.WithLabelValues(event).Observe(duration)
	}
}

func (m *Metrics) RecordTelemetry(result string) {
	if m == nil {
		return
	}
	m.TelemetryRecorded.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(seconds)
}
