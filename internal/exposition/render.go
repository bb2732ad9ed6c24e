// Package exposition renders series store snapshots in the Prometheus text
// exposition format.
package exposition

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// ContentType is the Content-Type of the rendered payload.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Render writes points grouped by metric name, with one # TYPE line (and a
// # HELP line when help text is set) per metric name. Points must be sorted
// by metric name, as Store.Snapshot returns them.
func Render(w io.Writer, points []models.SeriesPoint) error {
	lastMetric := ""
	for _, p := range points {
		if p.Metric != lastMetric {
			if _, err := fmt.Fprintf(w, "# TYPE %s %s\n", p.Metric, p.Type); err != nil {
				return err
			}
			if p.Help != "" {
				if _, err := fmt.Fprintf(w, "# HELP %s %s\n", p.Metric, p.Help); err != nil {
					return err
				}
			}
			lastMetric = p.Metric
		}

		value := strconv.FormatFloat(p.Value, 'g', -1, 64)
		var err error
		if p.Labels != "" {
			_, err = fmt.Fprintf(w, "%s{%s} %s\n", p.Metric, p.Labels, value)
		} else {
			_, err = fmt.Fprintf(w, "%s %s\n", p.Metric, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
