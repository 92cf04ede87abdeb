package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Command metrics
	Commands *prometheus.CounterVec

	// Event flow metrics
	SagaReactions   *prometheus.CounterVec
	BusQueueDepth   prometheus.Gauge
	OutboxPublished prometheus.Counter
	OutboxFailures  *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New creates all Prometheus metrics and registers them with reg. A nil reg
// means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esledger_commands_total",
				Help: "Total account commands by command and outcome",
			},
			[]string{"command", "outcome"},
		),

		SagaReactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esledger_saga_reactions_total",
				Help: "Transfer process manager reactions by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		BusQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "esledger_bus_queue_depth",
			Help: "Number of event batches waiting for delivery",
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "esledger_outbox_published_total",
			Help: "Total number of outbox events handed to the bus",
		}),
		OutboxFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esledger_outbox_failures_total",
				Help: "Outbox relay failures by stage",
			},
			[]string{"stage"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "esledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
	}
}

// RecordCommand counts an executed account command.
func (m *Metrics) RecordCommand(command, outcome string) {
	m.Commands.WithLabelValues(command, outcome).Inc()
}

// RecordSagaReaction counts one reaction of the transfer process manager.
func (m *Metrics) RecordSagaReaction(eventType, outcome string) {
	m.SagaReactions.WithLabelValues(eventType, outcome).Inc()
}

// RecordOutboxPublished counts events relayed from the outbox.
func (m *Metrics) RecordOutboxPublished(n int) {
	m.OutboxPublished.Add(float64(n))
}

// RecordOutboxFailure counts a failed relay stage (fetch, push or mark).
func (m *Metrics) RecordOutboxFailure(stage string) {
	m.OutboxFailures.WithLabelValues(stage).Inc()
}
