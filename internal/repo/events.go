package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LeventeLantos/zenvia-go/model"
)

// StoredEvent is a webhook event as persisted. Payload is the event encoded
// the way it arrived, discriminator included.
type StoredEvent struct {
	ID             string          `json:"id"`
	Type           model.EventType `json:"type"`
	Channel        model.Channel   `json:"channel,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
	MessageID      string          `json:"messageId,omitempty"`
	StatusCode     string          `json:"statusCode,omitempty"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	Payload        json.RawMessage `json:"payload"`
}

// Event decodes the stored payload back into its variant.
func (e StoredEvent) Event() (model.Event, error) {
	return model.DecodeEvent(e.Payload)
}

type EventFilter struct {
	MessageID string
	Limit     int
	Offset    int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f EventFilter) normalized() EventFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type EventRepository interface {
	// SaveEvent stores event. Saving an event ID twice keeps the first copy.
	SaveEvent(ctx context.Context, event model.Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]StoredEvent, error)
}
