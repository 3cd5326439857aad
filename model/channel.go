package model

import (
	"fmt"
	"strings"
)

type Channel string

const (
	WhatsApp Channel = "whatsapp"
	SMS      Channel = "sms"
	Facebook Channel = "facebook"
)

var channelContents = map[Channel][]ContentType{
	WhatsApp: {ContentText, ContentFile, ContentTemplate},
	Facebook: {ContentText, ContentFile},
	SMS:      {ContentText},
}

// Channels lists every supported channel.
func Channels() []Channel {
	return []Channel{WhatsApp, SMS, Facebook}
}

func ParseChannel(name string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(name)))
	if !ch.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, name)
	}
	return ch, nil
}

func (c Channel) Valid() bool {
	_, ok := channelContents[c]
	return ok
}

func (c Channel) String() string { return string(c) }

// SupportedContents returns the content types the channel accepts for sending.
func (c Channel) SupportedContents() []ContentType {
	return append([]ContentType(nil), channelContents[c]...)
}

func (c Channel) Supports(t ContentType) bool {
	for _, s := range channelContents[c] {
		if s == t {
			return true
		}
	}
	return false
}

// MessagesPath is the API resource messages for this channel are posted to.
func (c Channel) MessagesPath() string {
	return "/v1/channels/" + string(c) + "/messages"
}
