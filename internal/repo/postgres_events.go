package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/zenvia-go/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS webhook_events (
	id              TEXT PRIMARY KEY,
	event_type      TEXT NOT NULL,
	channel         TEXT NOT NULL DEFAULT '',
	subscription_id TEXT NOT NULL DEFAULT '',
	message_id      TEXT NOT NULL DEFAULT '',
	status_code     TEXT NOT NULL DEFAULT '',
	received_at     TIMESTAMPTZ NOT NULL,
	payload         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS webhook_events_message_id_idx ON webhook_events (message_id, received_at DESC);
`

type PostgresEventRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ EventRepository = (*PostgresEventRepo)(nil)

func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db, now: time.Now}
}

// EnsureSchema creates the events table when it does not exist.
func (r *PostgresEventRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure webhook_events schema: %w", err)
	}
	return nil
}

func (r *PostgresEventRepo) SaveEvent(ctx context.Context, event model.Event) error {
	row, err := newStoredEvent(event, r.now().UTC())
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO webhook_events
			(id, event_type, channel, subscription_id, message_id, status_code, received_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`,
		row.ID,
		string(row.Type),
		string(row.Channel),
		row.SubscriptionID,
		row.MessageID,
		row.StatusCode,
		row.ReceivedAt,
		[]byte(row.Payload),
	)
	if err != nil {
		return fmt.Errorf("save %s event %s: %w", row.Type, row.ID, err)
	}
	return nil
}

func (r *PostgresEventRepo) ListEvents(ctx context.Context, filter EventFilter) ([]StoredEvent, error) {
	filter = filter.normalized()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, channel, subscription_id, message_id, status_code, received_at, payload
		FROM webhook_events
		WHERE ($1 = '' OR message_id = $1)
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`, filter.MessageID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StoredEvent{}
	for rows.Next() {
		var (
			e       StoredEvent
			typ     string
			channel string
			payload []byte
		)
		if err := rows.Scan(
			&e.ID,
			&typ,
			&channel,
			&e.SubscriptionID,
			&e.MessageID,
			&e.StatusCode,
			&e.ReceivedAt,
			&payload,
		); err != nil {
			return nil, err
		}
		e.Type = model.EventType(typ)
		e.Channel = model.Channel(channel)
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// newStoredEvent flattens event into its row. Events that arrive without an ID
// get a random one so they can still be stored.
func newStoredEvent(event model.Event, receivedAt time.Time) (StoredEvent, error) {
	if event == nil {
		return StoredEvent{}, errors.New("nil event")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("encode %s event: %w", event.EventType(), err)
	}

	fields := event.Fields()
	row := StoredEvent{
		ID:             fields.ID,
		Type:           event.EventType(),
		Channel:        fields.Channel,
		SubscriptionID: fields.SubscriptionID,
		ReceivedAt:     receivedAt,
		Payload:        payload,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	switch e := event.(type) {
	case *model.MessageEvent:
		row.MessageID = e.Message.ID
	case *model.MessageStatusEvent:
		row.MessageID = e.MessageID
		row.StatusCode = string(e.MessageStatus.Code)
	}
	return row, nil
}
