package models

import "strings"

// MetricType is the exposition type of a metric rule.
type MetricType string

// Supported metric types in the text exposition format.
const (
	TypeGauge     MetricType = "gauge"
	TypeCounter   MetricType = "counter"
	TypeSummary   MetricType = "summary"
	TypeHistogram MetricType = "histogram"
	TypeUntyped   MetricType = "untyped"
)

// ParseMetricType maps a configured type string to a MetricType.
// Unrecognized values fall back to gauge rather than erroring.
func ParseMetricType(s string) MetricType {
	switch MetricType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeCounter:
		return TypeCounter
	case TypeSummary:
		return TypeSummary
	case TypeHistogram:
		return TypeHistogram
	case TypeUntyped:
		return TypeUntyped
	default:
		return TypeGauge
	}
}
