package rules

import (
	"fmt"
	"strconv"

	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// Sample is a successfully extracted metric update.
type Sample struct {
	Key   models.SeriesKey
	Value float64
}

// ExtractMetric applies a metric rule to a raw topic/payload pair.
//
// The rule's pattern is matched against topic+separator+payload. On a match
// the labels and value templates are expanded against the capture groups and
// the value is parsed as a float. Returns (sample, true, nil) on success,
// (zero, false, nil) when the pattern does not match, and (zero, false, err)
// when the expanded value does not parse as a float. Pure: no side effects.
func ExtractMetric(r *MetricRule, topic, payload string) (Sample, bool, error) {
	combined := topic + r.Separator + payload

	var groups []string
	if r.Pattern != nil {
		groups = r.Pattern.FindStringSubmatch(combined)
		if groups == nil {
			return Sample{}, false, nil
		}
	}

	labels := Expand(r.LabelsTemplate, groups)
	raw := Expand(r.ValueTemplate, groups)

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Sample{}, false, fmt.Errorf("value %q is not a number", raw)
	}

	return Sample{
		Key:   models.SeriesKey{Metric: r.MetricName, Labels: labels},
		Value: value,
	}, true, nil
}

// MatchCommand reports whether a payload admits the command rule. A rule
// without a payload pattern admits every payload.
func MatchCommand(r *CommandRule, payload string) bool {
	if r.Payload == nil {
		return true
	}
	return r.Payload.MatchString(payload)
}
