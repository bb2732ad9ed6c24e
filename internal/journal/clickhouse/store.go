// Package clickhouse provides a ClickHouse-backed journal backend for
// long-term event archiving, with batched asynchronous inserts.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultBatchSize     = 1000
	defaultFlushInterval = 2 * time.Second
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS mqtt_events (
    ts      DateTime64(3),
    rule    LowCardinality(String),
    topic   String,
    payload String,
    outcome LowCardinality(String),
    value   Float64
) ENGINE = MergeTree
ORDER BY (rule, ts)
TTL toDateTime(ts) + INTERVAL 30 DAY
`

// Config holds ClickHouse connection parameters.
type Config struct {
	Addr          string
	Database      string
	Username      string
	Password      string
	DialTimeout   time.Duration
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns a connection config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          "localhost:9000",
		Database:      "default",
		Username:      "default",
		DialTimeout:   defaultDialTimeout,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
	}
}

// Store is a ClickHouse-backed journal. Appends accumulate in a buffer
// flushed by size or interval; Recent queries the table directly.
type Store struct {
	conn   driver.Conn
	logger *slog.Logger

	mu     sync.Mutex
	rows   []models.Event
	size   int
	ticker *time.Ticker

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New connects to ClickHouse, ensures the schema, and starts the flusher.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     cfg.DialTimeout,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, schemaDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	size := cfg.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	s := &Store{
		conn:   conn,
		logger: logger,
		size:   size,
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// Append buffers one event; the buffer is flushed when it reaches the batch
// size.
func (s *Store) Append(ctx context.Context, ev models.Event) error {
	s.mu.Lock()
	s.rows = append(s.rows, ev)
	shouldFlush := len(s.rows) >= s.size
	s.mu.Unlock()

	if shouldFlush {
		return s.flush(ctx)
	}
	return nil
}

// Recent returns up to limit events, newest first. Buffered rows not yet
// flushed are not visible.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.Query(ctx, `
		SELECT ts, rule, topic, payload, outcome, value
		FROM mqtt_events
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.Time, &ev.Rule, &ev.Topic, &ev.Payload, &ev.Outcome, &ev.Value); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close flushes remaining rows and closes the connection.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.ticker.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if ferr := s.flush(ctx); ferr != nil {
			err = ferr
		}
		if cerr := s.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (s *Store) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.flush(ctx); err != nil {
				s.logger.Warn("journal flush failed", "error", err)
			}
			cancel()
		}
	}
}

func (s *Store) flush(ctx context.Context) error {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO mqtt_events")
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}
	for _, ev := range rows {
		if err := batch.Append(ev.Time, ev.Rule, ev.Topic, ev.Payload, ev.Outcome, ev.Value); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}
	return nil
}
