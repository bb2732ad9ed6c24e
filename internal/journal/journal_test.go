package journal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/journal/memory"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	j, err := Open(ctx, Config{Backend: "none"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(Nop); !ok {
		t.Errorf("backend none: got %T, want Nop", j)
	}

	j, err = Open(ctx, Config{Backend: ""}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(Nop); !ok {
		t.Errorf("empty backend: got %T, want Nop", j)
	}

	j, err = Open(ctx, Config{Backend: "memory", MemoryCapacity: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(*memory.Store); !ok {
		t.Errorf("backend memory: got %T, want *memory.Store", j)
	}

	if _, err := Open(ctx, Config{Backend: "etcd"}, nil); err == nil {
		t.Error("unknown backend must be rejected")
	}
}

func TestNopJournal(t *testing.T) {
	var j Journal = Nop{}
	if err := j.Append(context.Background(), models.Event{Rule: "r"}); err != nil {
		t.Errorf("Nop.Append: %v", err)
	}
	events, err := j.Recent(context.Background(), 10)
	if err != nil || len(events) != 0 {
		t.Errorf("Nop.Recent = %v, %v", events, err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Nop.Close: %v", err)
	}
}

func TestAsyncDeliversAndDrains(t *testing.T) {
	backend := memory.New(16)
	async := NewAsync(backend, 16, nil, nil)

	for i := 0; i < 5; i++ {
		async.Record(models.Event{Time: time.Now(), Rule: "r", Outcome: models.OutcomeSeriesUpdated})
	}
	if err := async.Close(); err != nil {
		t.Fatal(err)
	}

	events, err := backend.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		t.Errorf("backend holds %d events after Close, want all 5", len(events))
	}
}

// blockingJournal blocks every append until released.
type blockingJournal struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingJournal) Append(ctx context.Context, ev models.Event) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

func (b *blockingJournal) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	return nil, nil
}

func (b *blockingJournal) Close() error { return nil }

func TestAsyncDropsWhenQueueFull(t *testing.T) {
	backend := &blockingJournal{
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	var dropped atomic.Int32
	async := NewAsync(backend, 1, nil, func() { dropped.Add(1) })

	// First event occupies the writer, second fills the queue, third drops.
	async.Record(models.Event{Rule: "a"})
	<-backend.started
	async.Record(models.Event{Rule: "b"})
	async.Record(models.Event{Rule: "c"})

	if got := dropped.Load(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}

	close(backend.release)
	if err := async.Close(); err != nil {
		t.Fatal(err)
	}
}
