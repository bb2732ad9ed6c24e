package series

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func gaugeRule(name string, timeout time.Duration) *rules.MetricRule {
	return &rules.MetricRule{
		MetricName: name,
		MetricType: models.TypeGauge,
		Timeout:    timeout,
	}
}

func TestUpsertAndSnapshot(t *testing.T) {
	store := New()
	rule := gaugeRule("mqtt_metrics", 0)

	key := models.SeriesKey{Metric: "mqtt_metrics", Labels: `device="kitchen"`}
	store.Upsert(key, 21.5, t0, rule)

	points := store.Snapshot(t0)
	if len(points) != 1 {
		t.Fatalf("snapshot has %d points, want 1", len(points))
	}
	p := points[0]
	if p.Key() != key || p.Value != 21.5 || p.Type != models.TypeGauge {
		t.Errorf("unexpected point %+v", p)
	}
}

func TestUpsertOverwritesSameKey(t *testing.T) {
	store := New()
	rule := gaugeRule("m", 0)
	key := models.SeriesKey{Metric: "m", Labels: `a="1"`}

	store.Upsert(key, 1, t0, rule)
	store.Upsert(key, 2, t0.Add(time.Second), rule)

	points := store.Snapshot(t0.Add(time.Second))
	if len(points) != 1 {
		t.Fatalf("snapshot has %d points, want 1", len(points))
	}
	if points[0].Value != 2 {
		t.Errorf("value = %v, want 2 (last write wins)", points[0].Value)
	}
}

func TestDistinctLabelsAreDistinctSeries(t *testing.T) {
	store := New()
	rule := gaugeRule("m", 0)

	store.Upsert(models.SeriesKey{Metric: "m", Labels: `a="1"`}, 1, t0, rule)
	store.Upsert(models.SeriesKey{Metric: "m", Labels: `a="2"`}, 2, t0, rule)

	if got := len(store.Snapshot(t0)); got != 2 {
		t.Errorf("snapshot has %d points, want 2", got)
	}
}

func TestSnapshotStalenessFilter(t *testing.T) {
	store := New()
	rule := gaugeRule("m", 180*time.Second)
	key := models.SeriesKey{Metric: "m", Labels: ""}

	store.Upsert(key, 1, t0, rule)

	if len(store.Snapshot(t0.Add(179*time.Second))) != 1 {
		t.Error("entry should be present 179s after update")
	}
	if len(store.Snapshot(t0.Add(180*time.Second))) != 1 {
		t.Error("entry should be present exactly at the timeout boundary")
	}
	if len(store.Snapshot(t0.Add(181*time.Second))) != 0 {
		t.Error("entry should be absent 181s after update")
	}

	// A fresh upsert resets the age.
	store.Upsert(key, 2, t0.Add(200*time.Second), rule)
	if len(store.Snapshot(t0.Add(201*time.Second))) != 1 {
		t.Error("entry should reappear after a fresh update")
	}
}

func TestSnapshotZeroTimeoutNeverExpires(t *testing.T) {
	store := New()
	rule := gaugeRule("m", 0)
	store.Upsert(models.SeriesKey{Metric: "m"}, 1, t0, rule)

	if len(store.Snapshot(t0.Add(24*365*time.Hour))) != 1 {
		t.Error("entry with no timeout must always be included")
	}
}

func TestSnapshotGateFilter(t *testing.T) {
	store := New()
	rule := gaugeRule("m", 0)
	rule.Gate = &rules.StatusGate{GoodTopic: "st", GoodPayload: "up", BadTopic: "st", BadPayload: "down"}

	store.Upsert(models.SeriesKey{Metric: "m"}, 1, t0, rule)

	if len(store.Snapshot(t0)) != 0 {
		t.Error("series of a closed gate must be hidden")
	}
	rule.Gate.Observe("st", "up")
	if len(store.Snapshot(t0)) != 1 {
		t.Error("series should appear once the gate opens")
	}
}

func TestSnapshotSorted(t *testing.T) {
	store := New()
	rule := gaugeRule("b_metric", 0)
	ruleA := gaugeRule("a_metric", 0)

	store.Upsert(models.SeriesKey{Metric: "b_metric", Labels: `x="2"`}, 1, t0, rule)
	store.Upsert(models.SeriesKey{Metric: "b_metric", Labels: `x="1"`}, 1, t0, rule)
	store.Upsert(models.SeriesKey{Metric: "a_metric"}, 1, t0, ruleA)

	points := store.Snapshot(t0)
	if len(points) != 3 {
		t.Fatalf("snapshot has %d points, want 3", len(points))
	}
	if points[0].Metric != "a_metric" || points[1].Labels != `x="1"` || points[2].Labels != `x="2"` {
		t.Errorf("snapshot not sorted: %+v", points)
	}
}

func TestConcurrentUpsertAndSnapshot(t *testing.T) {
	store := New()
	rule := gaugeRule("m", 0)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := models.SeriesKey{Metric: "m", Labels: fmt.Sprintf(`w="%d",i="%d"`, w, i%10)}
				store.Upsert(key, float64(i), t0.Add(time.Duration(i)), rule)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				store.Snapshot(t0.Add(time.Duration(i)))
			}
		}()
	}
	wg.Wait()

	if got := store.Len(); got != 80 {
		t.Errorf("store has %d entries, want 80", got)
	}
}
