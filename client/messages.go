package client

import (
	"context"
	"fmt"

	"github.com/LeventeLantos/zenvia-go/model"
)

// SendMessage posts req to the channel's messages resource. Every content is
// checked against the channel first; nothing is sent if one is unsupported.
func (c *Client) SendMessage(ctx context.Context, channel model.Channel, req model.MessageRequest) (*model.Message, error) {
	if err := ValidateContents(channel, req.Contents); err != nil {
		return nil, err
	}

	var msg model.Message
	if err := c.post(ctx, channel.MessagesPath(), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ValidateContents reports the first content the channel does not accept.
func ValidateContents(channel model.Channel, contents []model.Content) error {
	if !channel.Valid() {
		return fmt.Errorf("zenvia: %w: %q", model.ErrUnsupportedChannel, channel)
	}
	for i, content := range contents {
		if content == nil {
			return fmt.Errorf("zenvia: content at index %d is nil", i)
		}
		if !channel.Supports(content.ContentType()) {
			return &UnsupportedContentError{Index: i, ContentType: content.ContentType(), Channel: channel}
		}
	}
	return nil
}
