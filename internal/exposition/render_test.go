package exposition

import (
	"strings"
	"testing"
	"time"

	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

func TestRenderGroupsByMetric(t *testing.T) {
	now := time.Now()
	points := []models.SeriesPoint{
		{Metric: "mqtt_metrics", Type: models.TypeGauge, Help: "values from mqtt", Labels: `device="bedroom"`, Value: 20, Updated: now},
		{Metric: "mqtt_metrics", Type: models.TypeGauge, Help: "values from mqtt", Labels: `device="kitchen"`, Value: 21.5, Updated: now},
		{Metric: "uptime_seconds", Type: models.TypeCounter, Labels: "", Value: 300, Updated: now},
	}

	var b strings.Builder
	if err := Render(&b, points); err != nil {
		t.Fatal(err)
	}
	got := b.String()

	want := `# TYPE mqtt_metrics gauge
# HELP mqtt_metrics values from mqtt
mqtt_metrics{device="bedroom"} 20
mqtt_metrics{device="kitchen"} 21.5
# TYPE uptime_seconds counter
uptime_seconds 300
`
	if got != want {
		t.Errorf("rendered output:\n%s\nwant:\n%s", got, want)
	}

	if strings.Count(got, "# TYPE mqtt_metrics") != 1 {
		t.Error("TYPE header must appear once per metric name")
	}
}

func TestRenderEmptySnapshot(t *testing.T) {
	var b strings.Builder
	if err := Render(&b, nil); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Errorf("empty snapshot rendered %q, want empty", b.String())
	}
}

func TestRenderValueFormatting(t *testing.T) {
	points := []models.SeriesPoint{
		{Metric: "m", Type: models.TypeGauge, Value: 0.000001},
	}
	var b strings.Builder
	if err := Render(&b, points); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "m 1e-06\n") {
		t.Errorf("unexpected value formatting: %q", b.String())
	}
}
