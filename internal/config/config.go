// Package config loads and validates the YAML configuration for both
// bridge binaries. Configuration errors are fatal at load time: the process
// must not start ingesting with an invalid rule set.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/journal"
	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
	"gopkg.in/yaml.v3"
)

// metricNameRE is the Prometheus metric name charset.
var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("180s") or a bare number of seconds (180).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var seconds int64
	if err := node.Decode(&seconds); err == nil {
		if seconds < 0 {
			return fmt.Errorf("negative time value %d", seconds)
		}
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative time value %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// MQTT holds broker connection settings.
type MQTT struct {
	Broker    string   `yaml:"broker"`
	ClientID  string   `yaml:"client_id"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Keepalive Duration `yaml:"keepalive"`
}

// Exporter holds the HTTP exposition settings of the exporter binary.
type Exporter struct {
	Listen      string `yaml:"listen"`
	MetricsPath string `yaml:"metrics_path"`
}

// MetricRule is one exporter rule as written in the config file.
type MetricRule struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Help      string   `yaml:"help"`
	Topic     string   `yaml:"topic"`
	Pattern   string   `yaml:"pattern"`
	Separator *string  `yaml:"separator"`
	Labels    string   `yaml:"labels"`
	Value     string   `yaml:"value"`
	Timeout   Duration `yaml:"timeout"`

	StatusGoodTopic   string `yaml:"status_good_topic"`
	StatusGoodPayload string `yaml:"status_good_payload"`
	StatusBadTopic    string `yaml:"status_bad_topic"`
	StatusBadPayload  string `yaml:"status_bad_payload"`
}

// CommandRule is one command runner rule as written in the config file.
type CommandRule struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	Cmd     string `yaml:"cmd"`
}

// Config is the full configuration file.
type Config struct {
	MQTT     MQTT           `yaml:"mqtt"`
	Exporter Exporter       `yaml:"exporter"`
	Journal  journal.Config `yaml:"journal"`
	Metrics  []MetricRule   `yaml:"metrics"`
	Commands []CommandRule  `yaml:"commands"`
}

// Default returns the configuration defaults applied before unmarshaling.
func Default() Config {
	hostname, _ := os.Hostname()
	return Config{
		MQTT: MQTT{
			ClientID:  "mqtt-bridge-" + hostname,
			Keepalive: Duration(30 * time.Second),
		},
		Exporter: Exporter{
			Listen:      ":8840",
			MetricsPath: "/metrics",
		},
		Journal: journal.DefaultConfig(),
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	return &cfg, nil
}

// CompileMetricRules validates and compiles the exporter rules, preserving
// configuration order.
func (c *Config) CompileMetricRules() ([]*rules.MetricRule, error) {
	compiled := make([]*rules.MetricRule, 0, len(c.Metrics))
	for i, m := range c.Metrics {
		rule, err := compileMetricRule(m)
		if err != nil {
			return nil, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

// CompileCommandRules validates and compiles the command runner rules,
// preserving configuration order.
func (c *Config) CompileCommandRules() ([]*rules.CommandRule, error) {
	compiled := make([]*rules.CommandRule, 0, len(c.Commands))
	for i, cmd := range c.Commands {
		rule, err := compileCommandRule(cmd)
		if err != nil {
			return nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

func compileMetricRule(m MetricRule) (*rules.MetricRule, error) {
	if err := rules.ValidateFilter(m.Topic); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("metric name is required")
	}
	if !metricNameRE.MatchString(m.Name) {
		return nil, fmt.Errorf("invalid metric name %q", m.Name)
	}

	rule := &rules.MetricRule{
		Topic:          m.Topic,
		Separator:      " ",
		LabelsTemplate: m.Labels,
		ValueTemplate:  m.Value,
		MetricName:     m.Name,
		MetricType:     models.ParseMetricType(m.Type),
		MetricHelp:     m.Help,
		Timeout:        time.Duration(m.Timeout),
	}
	if m.Separator != nil {
		rule.Separator = *m.Separator
	}

	if m.Pattern != "" {
		re, err := rules.CompilePattern(m.Pattern)
		if err != nil {
			return nil, err
		}
		rule.Pattern = re
	}

	if m.StatusGoodTopic != "" || m.StatusBadTopic != "" {
		for _, t := range []string{m.StatusGoodTopic, m.StatusBadTopic} {
			if t == "" {
				continue
			}
			if err := rules.ValidateFilter(t); err != nil {
				return nil, err
			}
		}
		rule.Gate = &rules.StatusGate{
			GoodTopic:   m.StatusGoodTopic,
			GoodPayload: m.StatusGoodPayload,
			BadTopic:    m.StatusBadTopic,
			BadPayload:  m.StatusBadPayload,
		}
	}
	return rule, nil
}

func compileCommandRule(c CommandRule) (*rules.CommandRule, error) {
	if err := rules.ValidateFilter(c.Topic); err != nil {
		return nil, err
	}
	if c.Cmd == "" {
		return nil, fmt.Errorf("cmd is required")
	}

	rule := &rules.CommandRule{
		Topic:   c.Topic,
		Command: c.Cmd,
	}
	if c.Payload != "" {
		re, err := rules.CompilePattern(c.Payload)
		if err != nil {
			return nil, err
		}
		rule.Payload = re
	}
	return rule, nil
}
