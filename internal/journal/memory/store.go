// Package memory provides a bounded in-memory journal backend.
package memory

import (
	"context"
	"sync"

	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// DefaultCapacity bounds the ring when no capacity is configured.
const DefaultCapacity = 1024

// Store is a fixed-capacity ring of events. Once full, each append evicts
// the oldest entry.
type Store struct {
	mu     sync.RWMutex
	events []models.Event
	next   int
	full   bool
}

// New creates a ring holding at most capacity events.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{events: make([]models.Event, capacity)}
}

// Append records one event, evicting the oldest when the ring is full.
func (s *Store) Append(ctx context.Context, ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[s.next] = ev
	s.next++
	if s.next == len(s.events) {
		s.next = 0
		s.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.next
	if s.full {
		size = len(s.events)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]models.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := s.next - i
		if idx < 0 {
			idx += len(s.events)
		}
		out = append(out, s.events[idx])
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }
