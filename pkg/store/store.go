// Package store persists the events emitted by reasoning streams so
// that clients reconnecting mid-stream can catch up from a known
// sequence number.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

// StoredEvent is an event together with its database-assigned sequence
// number. IDs are monotonically increasing per store, so "give me
// everything after seq N" is a simple range scan.
type StoredEvent struct {
	ID    int64           `json:"id"`
	Event reasoning.Event `json:"event"`
}

// Store provides event persistence backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the event database at path and
// initializes the schema. Use ":memory:" for an ephemeral store.
func NewStore(ctx context.Context, path string) (*Store, error) {
	// WAL mode allows readers to proceed while an emit is writing
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection keeps
	// the serialization in the pool instead of in busy-retries
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping event database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize event schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		type       TEXT NOT NULL,
		phase      TEXT NOT NULL,
		message    TEXT NOT NULL,
		source     TEXT NOT NULL,
		metadata   TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_request_seq
		ON events(request_id, id);

	CREATE INDEX IF NOT EXISTS idx_events_created_at
		ON events(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveEvent persists an event and returns its sequence number.
func (s *Store) SaveEvent(ctx context.Context, ev reasoning.Event) (int64, error) {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	createdAt := time.Now().Unix()
	if ts, err := ev.Metadata.ParseTimestamp(); err == nil {
		createdAt = ts.Unix()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (request_id, type, phase, message, source, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Metadata.RequestID, string(ev.Type), string(ev.Phase),
		ev.Message, string(ev.Metadata.Source), string(metadata), createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to save event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event sequence: %w", err)
	}
	return id, nil
}

// ListEvents returns up to limit events for a request with sequence
// numbers greater than sinceID, in emission order. A limit <= 0 means
// no limit.
func (s *Store) ListEvents(ctx context.Context, requestID string, sinceID int64, limit int) ([]StoredEvent, error) {
	query := `
		SELECT id, type, phase, message, metadata
		FROM events
		WHERE request_id = ? AND id > ?
		ORDER BY id ASC`
	args := []any{requestID, sinceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			stored   StoredEvent
			evType   string
			phase    string
			metadata string
		)
		if err := rows.Scan(&stored.ID, &evType, &phase, &stored.Event.Message, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		stored.Event.Type = reasoning.EventType(evType)
		stored.Event.Phase = reasoning.ThinkingPhase(phase)
		if err := json.Unmarshal([]byte(metadata), &stored.Event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
		events = append(events, stored)
	}
	return events, rows.Err()
}

// PruneBefore deletes events created before the cutoff and returns the
// number removed. Run periodically to bound database growth.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM events WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// DeleteStream removes all persisted events for a request.
func (s *Store) DeleteStream(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM events WHERE request_id = ?", requestID)
	if err != nil {
		return fmt.Errorf("failed to delete stream events: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
