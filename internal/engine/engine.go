// Package engine drives message processing: each incoming MQTT message is
// routed to every matching rule, extracted, and applied to the series store
// or dispatched as a command.
package engine

import (
	"log/slog"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/journal"
	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/internal/series"
	"github.com/mqtt-tools/mqttbridge/internal/telemetry"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// Options configures an Engine. Store and Dispatcher are each optional: the
// exporter runs without a dispatcher, the command runner without a store.
type Options struct {
	Store      *series.Store
	Dispatcher *Dispatcher
	Journal    *journal.Async
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine is the ingestion loop. OnMessage is safe for concurrent calls.
type Engine struct {
	rules   *rules.RuleSet
	store   *series.Store
	disp    *Dispatcher
	journal *journal.Async
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an engine over an immutable rule set.
func New(set *rules.RuleSet, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		rules:   set,
		store:   opts.Store,
		disp:    opts.Dispatcher,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}
}

// OnMessage processes one MQTT message. Every matching rule is evaluated
// independently: a failure in one rule never prevents the others, and no
// per-event error propagates out of the loop.
func (e *Engine) OnMessage(topic, payload string) {
	if e.metrics != nil {
		e.metrics.MessagesReceived.Inc()
	}
	e.logger.Debug("message received", "topic", topic, "payload", payload)

	e.rules.ObserveGates(topic, payload)

	if e.store != nil {
		for _, rule := range e.rules.MatchMetrics(topic) {
			e.applyMetric(rule, topic, payload)
		}
	}

	if e.disp != nil {
		for _, rule := range e.rules.MatchCommands(topic) {
			if !rules.MatchCommand(rule, payload) {
				e.logger.Debug("payload does not match rule",
					"topic", topic, "payload", payload, "rule", rule.Topic)
				continue
			}
			if e.metrics != nil {
				e.metrics.RuleMatches.WithLabelValues(rule.Topic).Inc()
			}
			e.disp.Run(rule)
		}
	}
}

func (e *Engine) applyMetric(rule *rules.MetricRule, topic, payload string) {
	sample, ok, err := rules.ExtractMetric(rule, topic, payload)
	if err != nil {
		// The pattern matched but the value template did not resolve to
		// a number. Drop the event for this rule only.
		if e.metrics != nil {
			e.metrics.ExtractionDrops.WithLabelValues(rule.MetricName).Inc()
		}
		e.logger.Debug("extraction dropped",
			"metric", rule.MetricName, "topic", topic, "error", err)
		e.record(models.Event{
			Time: e.now(), Rule: rule.MetricName, Topic: topic,
			Payload: payload, Outcome: models.OutcomeValueRejected,
		})
		return
	}
	if !ok {
		return
	}

	now := e.now()
	e.store.Upsert(sample.Key, sample.Value, now, rule)
	if e.metrics != nil {
		e.metrics.RuleMatches.WithLabelValues(rule.MetricName).Inc()
	}
	e.record(models.Event{
		Time: now, Rule: rule.MetricName, Topic: topic, Payload: payload,
		Outcome: models.OutcomeSeriesUpdated, Value: sample.Value,
	})
}

func (e *Engine) record(ev models.Event) {
	if e.journal != nil {
		e.journal.Record(ev)
	}
}
