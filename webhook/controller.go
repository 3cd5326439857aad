// Package webhook receives Zenvia callback events and keeps the matching
// subscriptions registered.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/LeventeLantos/zenvia-go/client"
	"github.com/LeventeLantos/zenvia-go/model"
)

type MessageEventHandler func(ctx context.Context, event *model.MessageEvent) error

type MessageStatusEventHandler func(ctx context.Context, event *model.MessageStatusEvent) error

// SubscriptionCreator is the part of *client.Client the controller needs.
type SubscriptionCreator interface {
	CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error)
}

type Config struct {
	MessageEventHandler       MessageEventHandler
	MessageStatusEventHandler MessageStatusEventHandler

	// Path the events are received on. Defaults to "/".
	Path string

	// Client, URL and Channel enable subscription management. When any of
	// them is missing the controller only receives events. A nil pointer
	// stored in Client counts as missing.
	Client  SubscriptionCreator
	URL     string
	Channel model.Channel

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Controller is safe for concurrent Dispatch calls. Init is meant to be called
// once before traffic is served.
type Controller struct {
	onMessage       MessageEventHandler
	onMessageStatus MessageStatusEventHandler
	path            string
	client          SubscriptionCreator
	url             string
	channel         model.Channel
	logger          *slog.Logger

	initialized atomic.Bool
}

func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		onMessage:       cfg.MessageEventHandler,
		onMessageStatus: cfg.MessageStatusEventHandler,
		path:            normalizePath(cfg.Path),
		client:          presentCreator(cfg.Client),
		url:             cfg.URL,
		channel:         cfg.Channel,
		logger:          logger,
	}
}

// presentCreator returns nil for a nil interface and for an interface holding
// a nil pointer, such as a (*client.Client)(nil).
func presentCreator(sc SubscriptionCreator) SubscriptionCreator {
	if sc == nil {
		return nil
	}
	if v := reflect.ValueOf(sc); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return sc
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (c *Controller) Path() string { return c.path }

func (c *Controller) Initialized() bool { return c.initialized.Load() }

// Init reconciles the subscriptions this controller needs. The controller
// counts as initialized afterwards whatever the outcome.
func (c *Controller) Init(ctx context.Context) error {
	defer c.initialized.Store(true)
	return c.Reconcile(ctx)
}

// Manages reports whether the controller creates subscriptions.
func (c *Controller) Manages() bool {
	if c.client == nil || c.url == "" || c.channel == "" {
		return false
	}
	return c.onMessage != nil || c.onMessageStatus != nil
}

// Reconcile creates the subscriptions for the registered handlers. A
// subscription that already exists is left alone, so it is safe to call
// repeatedly.
func (c *Controller) Reconcile(ctx context.Context) error {
	if !c.Manages() {
		c.logger.Debug("webhook subscription management disabled", "path", c.path)
		return nil
	}

	webhook := model.NewWebhook(c.url, nil)

	if c.onMessage != nil {
		sub := model.NewMessageSubscription(webhook, model.MessageCriteria{
			Channel:   c.channel,
			Direction: model.DirectionIn,
		})
		if err := c.ensure(ctx, sub); err != nil {
			return err
		}
	}

	if c.onMessageStatus != nil {
		sub := model.NewMessageStatusSubscription(webhook, model.MessageStatusCriteria{
			Channel: c.channel,
		})
		if err := c.ensure(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) ensure(ctx context.Context, sub model.Subscription) error {
	created, err := c.client.CreateSubscription(ctx, sub)
	switch {
	case err == nil:
		id := ""
		if created != nil {
			id = created.Fields().ID
		}
		c.logger.Info("webhook subscription created",
			"event_type", sub.EventType(),
			"channel", c.channel,
			"url", c.url,
			"id", id,
		)
		return nil
	case client.IsConflict(err):
		c.logger.Debug("webhook subscription already exists",
			"event_type", sub.EventType(),
			"channel", c.channel,
			"url", c.url,
		)
		return nil
	default:
		return fmt.Errorf("webhook: create %s subscription: %w", sub.EventType(), err)
	}
}

// Dispatch hands event to the matching handler. Handler errors and panics are
// logged and never returned.
func (c *Controller) Dispatch(ctx context.Context, event model.Event) {
	switch e := event.(type) {
	case *model.MessageEvent:
		if c.onMessage == nil {
			c.logger.Debug("no handler for message event", "id", e.ID)
			return
		}
		c.invoke(e, func() error { return c.onMessage(ctx, e) })
	case *model.MessageStatusEvent:
		if c.onMessageStatus == nil {
			c.logger.Debug("no handler for message status event", "id", e.ID)
			return
		}
		c.invoke(e, func() error { return c.onMessageStatus(ctx, e) })
	default:
		c.logger.Warn("unhandled webhook event", "type", fmt.Sprintf("%T", event))
	}
}

func (c *Controller) invoke(event model.Event, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("webhook handler panic recovered",
				"event_type", event.EventType(),
				"id", event.Fields().ID,
				"panic", r,
			)
		}
	}()

	if err := fn(); err != nil {
		c.logger.Error("webhook handler failed",
			"event_type", event.EventType(),
			"id", event.Fields().ID,
			"error", err,
		)
	}
}
