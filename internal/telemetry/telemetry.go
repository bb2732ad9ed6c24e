// Package telemetry holds the bridge's own operational metrics, registered
// in a private Prometheus registry and rendered alongside the bridged series.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains all bridge-level metrics (not the bridged series).
type Metrics struct {
	Registry *prometheus.Registry

	MessagesReceived prometheus.Counter
	RuleMatches      *prometheus.CounterVec
	ExtractionDrops  *prometheus.CounterVec
	CommandsStarted  *prometheus.CounterVec
	CommandsFailed   *prometheus.CounterVec
	CommandsSkipped  *prometheus.CounterVec
	JournalErrors    prometheus.Counter
	BrokerConnected  prometheus.Gauge
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "messages",
			Name:      "received_total",
			Help:      "Total number of MQTT messages delivered to the engine",
		}),

		RuleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "rules",
			Name:      "matches_total",
			Help:      "Total number of successful rule matches",
		}, []string{"rule"}),

		ExtractionDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "rules",
			Name:      "extraction_drops_total",
			Help:      "Messages dropped because the extracted value was not a number",
		}, []string{"rule"}),

		CommandsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "commands",
			Name:      "started_total",
			Help:      "Total number of commands launched",
		}, []string{"rule"}),

		CommandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "commands",
			Name:      "failed_total",
			Help:      "Commands that failed to launch or exited non-zero",
		}, []string{"rule"}),

		CommandsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "commands",
			Name:      "skipped_total",
			Help:      "Commands skipped because the previous run was still in flight",
		}, []string{"rule"}),

		JournalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mqttbridge",
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Journal write failures and queue drops",
		}),

		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mqttbridge",
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "Broker connection status (0=disconnected, 1=connected)",
		}),
	}

	m.Registry.MustRegister(
		m.MessagesReceived,
		m.RuleMatches,
		m.ExtractionDrops,
		m.CommandsStarted,
		m.CommandsFailed,
		m.CommandsSkipped,
		m.JournalErrors,
		m.BrokerConnected,
	)
	return m
}
