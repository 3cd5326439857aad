package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/LeventeLantos/zenvia-go/internal/cache"
	"github.com/LeventeLantos/zenvia-go/internal/repo"
	"github.com/LeventeLantos/zenvia-go/model"
	"github.com/LeventeLantos/zenvia-go/webhook"
)

// EventSink sits in front of the webhook handlers. It drops events already
// seen, persists the rest and then passes them on. Both the deduper and the
// store are optional.
type EventSink struct {
	dedup  cache.EventDeduper
	store  repo.EventRepository
	logger *slog.Logger
}

func NewEventSink(dedup cache.EventDeduper, store repo.EventRepository, logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{dedup: dedup, store: store, logger: logger}
}

// MessageHandler wraps next. next may be nil to only record events.
func (s *EventSink) MessageHandler(next webhook.MessageEventHandler) webhook.MessageEventHandler {
	return func(ctx context.Context, event *model.MessageEvent) error {
		fresh, err := s.accept(ctx, event)
		if !fresh || next == nil {
			return err
		}
		return errors.Join(err, next(ctx, event))
	}
}

func (s *EventSink) MessageStatusHandler(next webhook.MessageStatusEventHandler) webhook.MessageStatusEventHandler {
	return func(ctx context.Context, event *model.MessageStatusEvent) error {
		fresh, err := s.accept(ctx, event)
		if !fresh || next == nil {
			return err
		}
		return errors.Join(err, next(ctx, event))
	}
}

// accept reports whether event should be handled. A failing deduper lets the
// event through; a failing store is reported but does not stop handling.
func (s *EventSink) accept(ctx context.Context, event model.Event) (bool, error) {
	id := event.Fields().ID

	if s.dedup != nil {
		first, err := s.dedup.FirstSeen(ctx, id)
		switch {
		case err != nil:
			s.logger.Warn("event dedup unavailable", "id", id, "error", err)
		case !first:
			s.logger.Info("duplicate webhook event dropped", "id", id, "event_type", event.EventType())
			return false, nil
		}
	}

	if s.store != nil {
		if err := s.store.SaveEvent(ctx, event); err != nil {
			return true, err
		}
	}
	return true, nil
}
