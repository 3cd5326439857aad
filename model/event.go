package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type MessageStatusCode string

const (
	StatusRejected     MessageStatusCode = "REJECTED"
	StatusSent         MessageStatusCode = "SENT"
	StatusDelivered    MessageStatusCode = "DELIVERED"
	StatusNotDelivered MessageStatusCode = "NOT_DELIVERED"
	StatusRead         MessageStatusCode = "READ"
)

// EventFields are shared by every inbound webhook event.
type EventFields struct {
	ID             string     `json:"id"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	Channel        Channel    `json:"channel,omitempty"`
}

// Event is either *MessageEvent or *MessageStatusEvent, discriminated on the
// wire by "type".
type Event interface {
	EventType() EventType
	Fields() EventFields
}

type MessageEvent struct {
	EventFields
	Direction Direction `json:"direction,omitempty"`
	Message   Message   `json:"message"`
}

type MessageStatusEvent struct {
	EventFields
	MessageID     string        `json:"messageId"`
	ContentIndex  int           `json:"contentIndex"`
	MessageStatus MessageStatus `json:"messageStatus"`
}

type MessageStatus struct {
	Timestamp   *time.Time           `json:"timestamp,omitempty"`
	Code        MessageStatusCode    `json:"code"`
	Description string               `json:"description,omitempty"`
	Causes      []MessageStatusCause `json:"causes"`
}

type MessageStatusCause struct {
	ChannelErrorCode string `json:"channelErrorCode,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Details          string `json:"details,omitempty"`
}

func (MessageEvent) EventType() EventType       { return EventMessage }
func (MessageStatusEvent) EventType() EventType { return EventMessageStatus }

func (e MessageEvent) Fields() EventFields       { return e.EventFields }
func (e MessageStatusEvent) Fields() EventFields { return e.EventFields }

func (e MessageEvent) MarshalJSON() ([]byte, error) {
	type alias MessageEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{EventMessage, alias(e)})
}

func (e MessageStatusEvent) MarshalJSON() ([]byte, error) {
	type alias MessageStatusEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		alias
	}{EventMessageStatus, alias(e)})
}

func (s MessageStatus) MarshalJSON() ([]byte, error) {
	type alias MessageStatus
	if s.Causes == nil {
		s.Causes = []MessageStatusCause{}
	}
	return json.Marshal(alias(s))
}

func (s *MessageStatus) UnmarshalJSON(data []byte) error {
	type alias MessageStatus
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Causes == nil {
		a.Causes = []MessageStatusCause{}
	}
	*s = MessageStatus(a)
	return nil
}

// DecodeEvent decodes an inbound webhook payload.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var e Event
	switch head.Type {
	case EventMessage:
		e = &MessageEvent{Message: Message{Contents: []Content{}}}
	case EventMessageStatus:
		e = &MessageStatusEvent{MessageStatus: MessageStatus{Causes: []MessageStatusCause{}}}
	default:
		return nil, &UnknownTypeError{Union: "event", Value: string(head.Type), Known: knownEventTypes}
	}

	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Type, err)
	}
	return e, nil
}
