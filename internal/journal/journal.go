// Package journal provides an optional audit trail of matched events with
// pluggable backends: a bounded in-memory ring, SQLite, or ClickHouse.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/journal/clickhouse"
	"github.com/mqtt-tools/mqttbridge/internal/journal/memory"
	"github.com/mqtt-tools/mqttbridge/internal/journal/sqlite"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// Journal stores matched events. Implementations must be safe for
// concurrent use.
type Journal interface {
	// Append records one event.
	Append(ctx context.Context, ev models.Event) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]models.Event, error)

	// Close releases backend resources.
	Close() error
}

// Config holds journal configuration.
type Config struct {
	// Backend selects the journal backend: "none", "memory", "sqlite" or
	// "clickhouse".
	Backend string `yaml:"backend"`

	// MemoryCapacity bounds the in-memory ring.
	MemoryCapacity int `yaml:"memory_capacity"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// ClickHouse connection settings.
	ClickHouseAddr     string `yaml:"clickhouse_addr"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUsername string `yaml:"clickhouse_username"`
	ClickHousePassword string `yaml:"clickhouse_password"`
}

// DefaultConfig returns the default journal configuration (disabled).
func DefaultConfig() Config {
	return Config{
		Backend:            "none",
		MemoryCapacity:     1024,
		SQLitePath:         "events.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUsername: "default",
	}
}

// Open creates a journal backend based on configuration.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Journal, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil

	case "memory":
		return memory.New(cfg.MemoryCapacity), nil

	case "sqlite":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite journal: %w", err)
		}
		return store, nil

	case "clickhouse":
		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Database = cfg.ClickHouseDatabase
		chCfg.Username = cfg.ClickHouseUsername
		chCfg.Password = cfg.ClickHousePassword
		store, err := clickhouse.New(ctx, chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse journal: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown journal backend: %s (supported: none, memory, sqlite, clickhouse)", cfg.Backend)
	}
}

// Nop is the disabled journal: appends succeed and queries are empty.
type Nop struct{}

func (Nop) Append(ctx context.Context, ev models.Event) error { return nil }

func (Nop) Recent(ctx context.Context, limit int) ([]models.Event, error) { return nil, nil }

func (Nop) Close() error { return nil }

// Async decouples journal writes from the ingestion path through a bounded
// queue served by a single writer goroutine. Full-queue appends are dropped
// and reported, never blocked on.
type Async struct {
	journal Journal
	queue   chan models.Event
	done    chan struct{}
	logger  *slog.Logger
	onError func()
}

// NewAsync wraps j with an asynchronous writer. onError is invoked for every
// dropped or failed write; it may be nil.
func NewAsync(j Journal, queueSize int, logger *slog.Logger, onError func()) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	a := &Async{
		journal: j,
		queue:   make(chan models.Event, queueSize),
		done:    make(chan struct{}),
		logger:  logger,
		onError: onError,
	}
	go a.run()
	return a
}

// Record enqueues an event without blocking. Events are dropped when the
// queue is full.
func (a *Async) Record(ev models.Event) {
	select {
	case a.queue <- ev:
	default:
		a.fail()
		a.logger.Warn("journal queue full, dropping event", "rule", ev.Rule, "topic", ev.Topic)
	}
}

// Close drains the queue and closes the underlying journal.
func (a *Async) Close() error {
	close(a.queue)
	<-a.done
	return a.journal.Close()
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.journal.Append(ctx, ev); err != nil {
			a.fail()
			a.logger.Warn("journal append failed", "error", err)
		}
		cancel()
	}
}

func (a *Async) fail() {
	if a.onError != nil {
		a.onError()
	}
}
