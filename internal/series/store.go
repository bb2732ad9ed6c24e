// Package series provides the concurrent last-value store the exporter
// exposes: one entry per (metric name, resolved label set), freshness-aware
// on the read path.
package series

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

const shardCount = 16

type entry struct {
	value   float64
	updated time.Time
	rule    *rules.MetricRule
}

type shard struct {
	mu      sync.RWMutex
	entries map[models.SeriesKey]entry
}

// Store maps series keys to their last value and update time. Sharded so
// ingestion writes and exposition reads contend per bucket, not globally.
// Staleness is a read-time filter: entries are never deleted.
type Store struct {
	shards [shardCount]shard
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].entries = make(map[models.SeriesKey]entry)
	}
	return s
}

func (s *Store) shardFor(key models.SeriesKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.Metric))
	h.Write([]byte{0xff})
	h.Write([]byte(key.Labels))
	return &s.shards[h.Sum32()%shardCount]
}

// Upsert replaces the entry for key, creating it if absent. Value and
// timestamp change together under the shard lock. The writing rule is kept
// with the entry so snapshots can apply its timeout and gate.
func (s *Store) Upsert(key models.SeriesKey, value float64, now time.Time, rule *rules.MetricRule) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = entry{value: value, updated: now, rule: rule}
	sh.mu.Unlock()
}

// Snapshot returns every live entry as of now: entries older than their
// rule's staleness timeout and entries whose rule is gated off are omitted.
// Each entry is read consistently; the snapshot as a whole is not an
// instantaneous cut across shards. Sorted by metric name then labels.
func (s *Store) Snapshot(now time.Time) []models.SeriesPoint {
	var points []models.SeriesPoint

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key, e := range sh.entries {
			if e.rule.Timeout > 0 && now.Sub(e.updated) > e.rule.Timeout {
				continue
			}
			if !e.rule.Exposable() {
				continue
			}
			points = append(points, models.SeriesPoint{
				Metric:  key.Metric,
				Type:    e.rule.MetricType,
				Help:    e.rule.MetricHelp,
				Labels:  key.Labels,
				Value:   e.value,
				Updated: e.updated,
			})
		}
		sh.mu.RUnlock()
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Metric != points[j].Metric {
			return points[i].Metric < points[j].Metric
		}
		return points[i].Labels < points[j].Labels
	})
	return points
}

// Len returns the number of stored entries, live or stale.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
