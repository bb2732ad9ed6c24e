package models

import "time"

// SeriesKey identifies a single metric series: a metric name plus the
// resolved label string. Two updates with the same key overwrite each
// other; different label strings under the same name are distinct series.
type SeriesKey struct {
	Metric string `json:"metric"`
	Labels string `json:"labels"`
}

// SeriesPoint is one entry of a series store snapshot, carrying everything
// the exposition renderer needs.
type SeriesPoint struct {
	Metric  string     `json:"metric"`
	Type    MetricType `json:"type"`
	Help    string     `json:"help,omitempty"`
	Labels  string     `json:"labels"`
	Value   float64    `json:"value"`
	Updated time.Time  `json:"updated"`
}

// Key returns the series identity of the point.
func (p SeriesPoint) Key() SeriesKey {
	return SeriesKey{Metric: p.Metric, Labels: p.Labels}
}
