package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventMessage       EventType = "MESSAGE"
	EventMessageStatus EventType = "MESSAGE_STATUS"
)

var knownEventTypes = []string{string(EventMessage), string(EventMessageStatus)}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusInactive SubscriptionStatus = "INACTIVE"
)

// Webhook is the callback target registered on a subscription.
type Webhook struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

func NewWebhook(url string, headers map[string]string) Webhook {
	w := Webhook{URL: url, Headers: make(map[string]string, len(headers))}
	for k, v := range headers {
		w.Headers[k] = v
	}
	return w
}

func (w Webhook) MarshalJSON() ([]byte, error) {
	type alias Webhook
	if w.Headers == nil {
		w.Headers = map[string]string{}
	}
	return json.Marshal(alias(w))
}

func (w *Webhook) UnmarshalJSON(data []byte) error {
	type alias Webhook
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Headers == nil {
		a.Headers = map[string]string{}
	}
	*w = Webhook(a)
	return nil
}

// SubscriptionFields are shared by every subscription variant.
type SubscriptionFields struct {
	ID        string             `json:"id,omitempty"`
	Webhook   Webhook            `json:"webhook"`
	Status    SubscriptionStatus `json:"status,omitempty"`
	CreatedAt *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
}

// Subscription is either *MessageSubscription or *MessageStatusSubscription,
// discriminated on the wire by "eventType".
type Subscription interface {
	EventType() EventType
	Fields() SubscriptionFields
}

type MessageCriteria struct {
	Channel   Channel   `json:"channel"`
	Direction Direction `json:"direction,omitempty"`
}

type MessageStatusCriteria struct {
	Channel Channel `json:"channel"`
}

type MessageSubscription struct {
	SubscriptionFields
	Criteria MessageCriteria `json:"criteria"`
}

type MessageStatusSubscription struct {
	SubscriptionFields
	Criteria MessageStatusCriteria `json:"criteria"`
}

func NewMessageSubscription(webhook Webhook, criteria MessageCriteria) *MessageSubscription {
	return &MessageSubscription{
		SubscriptionFields: SubscriptionFields{Webhook: webhook},
		Criteria:           criteria,
	}
}

func NewMessageStatusSubscription(webhook Webhook, criteria MessageStatusCriteria) *MessageStatusSubscription {
	return &MessageStatusSubscription{
		SubscriptionFields: SubscriptionFields{Webhook: webhook},
		Criteria:           criteria,
	}
}

func (MessageSubscription) EventType() EventType       { return EventMessage }
func (MessageStatusSubscription) EventType() EventType { return EventMessageStatus }

func (s MessageSubscription) Fields() SubscriptionFields       { return s.SubscriptionFields }
func (s MessageStatusSubscription) Fields() SubscriptionFields { return s.SubscriptionFields }

func (s MessageSubscription) MarshalJSON() ([]byte, error) {
	type alias MessageSubscription
	return json.Marshal(struct {
		EventType EventType `json:"eventType"`
		alias
	}{EventMessage, alias(s)})
}

func (s MessageStatusSubscription) MarshalJSON() ([]byte, error) {
	type alias MessageStatusSubscription
	return json.Marshal(struct {
		EventType EventType `json:"eventType"`
		alias
	}{EventMessageStatus, alias(s)})
}

// PartialSubscription holds the only fields an update may change.
type PartialSubscription struct {
	Webhook *Webhook           `json:"webhook,omitempty"`
	Status  SubscriptionStatus `json:"status,omitempty"`
}

// PartialFrom derives the updatable part of a full subscription.
func PartialFrom(s Subscription) PartialSubscription {
	f := s.Fields()
	webhook := f.Webhook
	return PartialSubscription{Webhook: &webhook, Status: f.Status}
}

func DecodeSubscription(data []byte) (Subscription, error) {
	var head struct {
		EventType EventType `json:"eventType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}

	var s Subscription
	switch head.EventType {
	case EventMessage:
		s = &MessageSubscription{}
	case EventMessageStatus:
		s = &MessageStatusSubscription{}
	default:
		return nil, &UnknownTypeError{Union: "subscription", Value: string(head.EventType), Known: knownEventTypes}
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode %s subscription: %w", head.EventType, err)
	}
	return s, nil
}

func DecodeSubscriptions(data []byte) ([]Subscription, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	out := make([]Subscription, 0, len(raw))
	for i, r := range raw {
		s, err := DecodeSubscription(r)
		if err != nil {
			return nil, fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
