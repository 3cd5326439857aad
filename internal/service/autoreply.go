package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/LeventeLantos/zenvia-go/model"
)

// MessageSender is the part of *client.Client the auto-replier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, channel model.Channel, req model.MessageRequest) (*model.Message, error)
}

// AutoReplier answers every inbound message with a fixed text on the channel
// it arrived on. "{{from}}" in the text is replaced with the sender.
type AutoReplier struct {
	client     MessageSender
	text       string
	contentMax int

	onSent   func(ctx context.Context, reply *model.Message) error
	onFailed func(ctx context.Context, inbound *model.MessageEvent, reason string) error
}

func NewAutoReplier(client MessageSender, text string, contentMax int) *AutoReplier {
	return &AutoReplier{
		client:     client,
		text:       text,
		contentMax: contentMax,
	}
}

func (a *AutoReplier) WithHooks(
	onSent func(ctx context.Context, reply *model.Message) error,
	onFailed func(ctx context.Context, inbound *model.MessageEvent, reason string) error,
) *AutoReplier {
	a.onSent = onSent
	a.onFailed = onFailed
	return a
}

// HandleMessage has the shape of webhook.MessageEventHandler. Outbound
// messages are ignored.
func (a *AutoReplier) HandleMessage(ctx context.Context, event *model.MessageEvent) error {
	if event == nil || direction(event) != model.DirectionIn {
		return nil
	}

	channel := event.Channel
	if channel == "" {
		channel = event.Message.Channel
	}
	if !channel.Valid() {
		return a.fail(ctx, event, fmt.Errorf("cannot reply on channel %q", channel))
	}
	if event.Message.From == "" {
		return a.fail(ctx, event, errors.New("inbound message has no sender"))
	}

	text := strings.ReplaceAll(a.text, "{{from}}", event.Message.From)
	if utf8.RuneCountInString(text) > a.contentMax {
		return a.fail(ctx, event, fmt.Errorf("reply exceeds %d chars", a.contentMax))
	}

	req := model.NewMessageRequest(event.Message.To, event.Message.From, model.NewTextContent(text))
	reply, err := a.client.SendMessage(ctx, channel, req)
	if err != nil {
		return a.fail(ctx, event, err)
	}

	if a.onSent != nil {
		if err := a.onSent(ctx, reply); err != nil {
			return fmt.Errorf("record reply %s: %w", reply.ID, err)
		}
	}
	return nil
}

func direction(event *model.MessageEvent) model.Direction {
	if event.Direction != "" {
		return event.Direction
	}
	return event.Message.Direction
}

func (a *AutoReplier) fail(ctx context.Context, event *model.MessageEvent, err error) error {
	if a.onFailed != nil {
		_ = a.onFailed(ctx, event, err.Error())
	}
	return err
}
