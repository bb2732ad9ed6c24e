package models

import "testing"

func TestParseMetricType(t *testing.T) {
	tests := []struct {
		in   string
		want MetricType
	}{
		{"gauge", TypeGauge},
		{"counter", TypeCounter},
		{"summary", TypeSummary},
		{"histogram", TypeHistogram},
		{"untyped", TypeUntyped},
		{"Counter", TypeCounter},
		{" gauge ", TypeGauge},
		{"", TypeGauge},
		{"bogus", TypeGauge},
	}

	for _, tt := range tests {
		if got := ParseMetricType(tt.in); got != tt.want {
			t.Errorf("ParseMetricType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
