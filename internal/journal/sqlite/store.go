// Package sqlite provides a SQLite-backed journal backend.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/mqtt-tools/mqttbridge/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append records one event.
func (s *Store) Append(ctx context.Context, ev models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (ts, rule, topic, payload, outcome, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Time.UnixMilli(), ev.Rule, ev.Topic, ev.Payload, ev.Outcome, ev.Value)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, rule, topic, payload, outcome, value
		FROM events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var ts int64
		if err := rows.Scan(&ts, &ev.Rule, &ev.Topic, &ev.Payload, &ev.Outcome, &ev.Value); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Time = time.UnixMilli(ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
