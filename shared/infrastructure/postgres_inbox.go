package infrastructure

import (
	"context"
	"time"

	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ Inbox = (*PostgresInbox)(nil)

// InboxSchema creates the table backing PostgresInbox
const InboxSchema = `
CREATE TABLE IF NOT EXISTS processed_messages (
	consumer       TEXT        NOT NULL,
	event_id       TEXT        NOT NULL,
	topic          TEXT        NOT NULL,
	aggregate_id   TEXT        NOT NULL,
	correlation_id TEXT        NOT NULL DEFAULT '',
	processed_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (consumer, event_id)
)`

// PostgresInbox implements Inbox on a processed_messages table
type PostgresInbox struct {
	db *sqlx.DB
}

// NewPostgresInbox creates a new PostgresInbox
func NewPostgresInbox(db *sqlx.DB) *PostgresInbox {
	return &PostgresInbox{db: db}
}

// EnsureSchema creates the inbox table if it is missing
func (i *PostgresInbox) EnsureSchema(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, InboxSchema)
	return errors.Wrap(err, "failed to create inbox schema")
}

type postgresProcessedMessage struct {
	Consumer      string    `db:"consumer"`
	EventID       string    `db:"event_id"`
	Topic         string    `db:"topic"`
	AggregateID   string    `db:"aggregate_id"`
	CorrelationID string    `db:"correlation_id"`
	ProcessedAt   time.Time `db:"processed_at"`
}

func (i *PostgresInbox) Seen(ctx context.Context, consumer string, eventID models.ID) (bool, error) {
	var exists bool
	err := i.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM processed_messages WHERE consumer = $1 AND event_id = $2)",
		consumer, eventID.String())
	if err != nil {
		return false, errors.Wrap(err, "failed to query processed messages")
	}
	return exists, nil
}

func (i *PostgresInbox) MarkSeen(ctx context.Context, consumer string, event *events.Event) error {
	row := postgresProcessedMessage{
		Consumer:      consumer,
		EventID:       event.ID.String(),
		Topic:         event.Topic.String(),
		AggregateID:   event.AggregateID.String(),
		CorrelationID: event.CorrelationID.String(),
		ProcessedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO processed_messages (
			consumer, event_id, topic, aggregate_id, correlation_id, processed_at
		) VALUES (
			:consumer, :event_id, :topic, :aggregate_id, :correlation_id, :processed_at
		)
		ON CONFLICT (consumer, event_id) DO NOTHING`

	if _, err := i.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to insert processed message")
	}
	return nil
}

// Purge deletes inbox rows older than the retention window
func (i *PostgresInbox) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := i.db.ExecContext(ctx,
		"DELETE FROM processed_messages WHERE processed_at < $1",
		time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge processed messages")
	}
	return res.RowsAffected()
}
