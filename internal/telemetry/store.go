package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Event is one archived telemetry message.
type Event struct {
	ID         int64     `json:"id"`
	Channel    string    `json:"channel"`
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// CommandRecord is one archived feed command.
type CommandRecord struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Command kinds stored in the feed_commands table.
const (
	CommandKindManual     = "manual"
	CommandKindAutoConfig = "auto_config"
)

// EventFilter controls which archived events to return.
type EventFilter struct {
	Channel string // optional: filter by channel name
	Limit   int    // default 50, max 500
	Offset  int    // pagination offset
}

// Repository defines the telemetry archive operations.
type Repository interface {
	SaveEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	SaveCommand(ctx context.Context, record *CommandRecord) error
}

// SQLiteRepository stores telemetry in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new telemetry archive repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveEvent inserts one telemetry message into the archive.
// ReceivedAt defaults to now if unset. The generated row ID is written
// back to the event.
func (r *SQLiteRepository) SaveEvent(ctx context.Context, event *Event) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO telemetry_events (channel, topic, payload, received_at)
		 VALUES (?, ?, ?, ?)`,
		event.Channel, event.Topic, event.Payload,
		event.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry event: %w", err)
	}

	event.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading telemetry event id: %w", err)
	}
	return nil
}

// ListEvents returns archived events matching the filter, newest first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 { //nolint:mnd // max page size for history queries
		filter.Limit = 500
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, filter.Channel)
	}

	query := "SELECT id, channel, topic, payload, received_at FROM telemetry_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, filter.Limit)
	for rows.Next() {
		var e Event
		var receivedAt string
		if err := rows.Scan(&e.ID, &e.Channel, &e.Topic, &e.Payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry event: %w", err)
		}
		e.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt) //nolint:errcheck // Format is controlled
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry events: %w", err)
	}

	return events, nil
}

// SaveCommand records a published feed command for the audit trail.
func (r *SQLiteRepository) SaveCommand(ctx context.Context, record *CommandRecord) error {
	if record.RequestedAt.IsZero() {
		record.RequestedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO feed_commands (kind, payload, requested_at) VALUES (?, ?, ?)`,
		record.Kind, record.Payload,
		record.RequestedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting feed command: %w", err)
	}

	record.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading feed command id: %w", err)
	}
	return nil
}
