package cache

import (
	"context"
	"time"

	"github.com/LeventeLantos/zenvia-go/model"
)

// MessageCache records messages sent through the API.
type MessageCache interface {
	StoreSent(ctx context.Context, messageID string, channel model.Channel, sentAt time.Time) error
}

// EventDeduper reports whether an inbound event is seen for the first time.
type EventDeduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}
