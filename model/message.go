package model

import (
	"encoding/json"
)

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// MessageRequest is the body posted to a channel's messages resource. Contents
// are sent in order.
type MessageRequest struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Contents []Content `json:"contents"`
}

func NewMessageRequest(from, to string, contents ...Content) MessageRequest {
	return MessageRequest{
		From:     from,
		To:       to,
		Contents: append([]Content{}, contents...),
	}
}

func (r MessageRequest) MarshalJSON() ([]byte, error) {
	type alias MessageRequest
	if r.Contents == nil {
		r.Contents = []Content{}
	}
	return json.Marshal(alias(r))
}

func (r *MessageRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		From     string            `json:"from"`
		To       string            `json:"to"`
		Contents []json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	contents, err := decodeContents(raw.Contents)
	if err != nil {
		return err
	}
	*r = MessageRequest{From: raw.From, To: raw.To, Contents: contents}
	return nil
}

// Message is a message as returned by the API or carried by a message event.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Direction Direction `json:"direction,omitempty"`
	Channel   Channel   `json:"channel,omitempty"`
	Contents  []Content `json:"contents"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	if m.Contents == nil {
		m.Contents = []Content{}
	}
	return json.Marshal(alias(m))
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string            `json:"id"`
		From      string            `json:"from"`
		To        string            `json:"to"`
		Direction Direction         `json:"direction"`
		Channel   Channel           `json:"channel"`
		Contents  []json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	contents, err := decodeContents(raw.Contents)
	if err != nil {
		return err
	}
	*m = Message{
		ID:        raw.ID,
		From:      raw.From,
		To:        raw.To,
		Direction: raw.Direction,
		Channel:   raw.Channel,
		Contents:  contents,
	}
	return nil
}
