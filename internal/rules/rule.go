package rules

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// CompilePattern compiles expr anchored at the start of the subject.
// Capture group indexes are unchanged by the anchoring wrapper.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + expr + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return re, nil
}

// StatusGate gates a metric rule's exposition on status messages: a message
// equal to GoodPayload on GoodTopic turns exposition on, BadPayload on
// BadTopic turns it off. The gate starts closed.
type StatusGate struct {
	GoodTopic   string
	GoodPayload string
	BadTopic    string
	BadPayload  string

	open atomic.Bool
}

// Observe feeds a message to the gate and reports whether the state changed.
func (g *StatusGate) Observe(topic, payload string) bool {
	if g == nil {
		return false
	}
	if g.GoodTopic != "" && MatchFilter(g.GoodTopic, topic) && payload == g.GoodPayload {
		return !g.open.Swap(true)
	}
	if g.BadTopic != "" && MatchFilter(g.BadTopic, topic) && payload == g.BadPayload {
		return g.open.Swap(false)
	}
	return false
}

// Open reports whether the gate currently admits exposition. A nil gate is
// always open.
func (g *StatusGate) Open() bool {
	if g == nil {
		return true
	}
	return g.open.Load()
}

// MetricRule maps messages on a topic filter to metric samples. All fields
// except the gate state are read-only after construction.
type MetricRule struct {
	// Topic is the MQTT subscription filter, with + and # wildcards.
	Topic string

	// Pattern is the anchored regex applied to topic+Separator+payload.
	// A nil pattern matches every message with no capture groups.
	Pattern   *regexp.Regexp
	Separator string

	// LabelsTemplate and ValueTemplate contain literal text and \N
	// backreferences into Pattern's capture groups.
	LabelsTemplate string
	ValueTemplate  string

	MetricName string
	MetricType models.MetricType
	MetricHelp string

	// Timeout is the staleness window: a series not updated for longer is
	// excluded from exposition. Zero disables the filter.
	Timeout time.Duration

	Gate *StatusGate
}

// Exposable reports whether the rule's series may appear in a snapshot.
func (r *MetricRule) Exposable() bool {
	return r.Gate.Open()
}

// CommandRule runs a shell command when a message on the topic filter has a
// payload admitted by Payload. A nil Payload admits everything.
type CommandRule struct {
	Topic   string
	Payload *regexp.Regexp
	Command string
}

// RuleSet is the ordered, immutable collection of rules loaded at startup.
type RuleSet struct {
	metrics  []*MetricRule
	commands []*CommandRule
}

// NewRuleSet builds a rule set. Filters must already be validated.
func NewRuleSet(metrics []*MetricRule, commands []*CommandRule) *RuleSet {
	return &RuleSet{metrics: metrics, commands: commands}
}

// MatchMetrics returns every metric rule whose filter matches topic, in
// configuration order.
func (s *RuleSet) MatchMetrics(topic string) []*MetricRule {
	var out []*MetricRule
	for _, r := range s.metrics {
		if MatchFilter(r.Topic, topic) {
			out = append(out, r)
		}
	}
	return out
}

// MatchCommands returns every command rule whose filter matches topic, in
// configuration order.
func (s *RuleSet) MatchCommands(topic string) []*CommandRule {
	var out []*CommandRule
	for _, r := range s.commands {
		if MatchFilter(r.Topic, topic) {
			out = append(out, r)
		}
	}
	return out
}

// Metrics returns the metric rules in configuration order.
func (s *RuleSet) Metrics() []*MetricRule { return s.metrics }

// Commands returns the command rules in configuration order.
func (s *RuleSet) Commands() []*CommandRule { return s.commands }

// ObserveGates feeds a message to every status gate in the set.
func (s *RuleSet) ObserveGates(topic, payload string) {
	for _, r := range s.metrics {
		r.Gate.Observe(topic, payload)
	}
}

// Topics returns the deduplicated list of filters to subscribe: every rule
// topic plus any status gate topics, in configuration order.
func (s *RuleSet) Topics() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, r := range s.metrics {
		add(r.Topic)
		if r.Gate != nil {
			add(r.Gate.GoodTopic)
			add(r.Gate.BadTopic)
		}
	}
	for _, r := range s.commands {
		add(r.Topic)
	}
	return out
}
