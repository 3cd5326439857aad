package model

import (
	"encoding/json"
	"fmt"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentFile     ContentType = "file"
	ContentTemplate ContentType = "template"
	ContentJSON     ContentType = "json"
)

var knownContentTypes = []string{
	string(ContentText),
	string(ContentFile),
	string(ContentTemplate),
	string(ContentJSON),
}

// Content is one unit of a message payload. The concrete value is one of
// *TextContent, *FileContent, *TemplateContent or *JSONContent.
type Content interface {
	ContentType() ContentType
}

type TextContent struct {
	Text string `json:"text"`
}

type FileContent struct {
	FileURL      string `json:"fileUrl"`
	FileMimeType string `json:"fileMimeType,omitempty"`
	FileCaption  string `json:"fileCaption,omitempty"`
}

type TemplateContent struct {
	TemplateID string            `json:"templateId"`
	Fields     map[string]string `json:"fields"`
}

// JSONContent carries a channel specific payload verbatim. It is produced when
// decoding inbound messages and is not accepted by any channel for sending.
type JSONContent struct {
	Payload map[string]any `json:"payload"`
}

func NewTextContent(text string) *TextContent {
	return &TextContent{Text: text}
}

func NewFileContent(fileURL, mimeType, caption string) *FileContent {
	return &FileContent{FileURL: fileURL, FileMimeType: mimeType, FileCaption: caption}
}

func NewTemplateContent(templateID string, fields map[string]string) *TemplateContent {
	c := &TemplateContent{TemplateID: templateID, Fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		c.Fields[k] = v
	}
	return c
}

func NewJSONContent(payload map[string]any) *JSONContent {
	c := &JSONContent{Payload: make(map[string]any, len(payload))}
	for k, v := range payload {
		c.Payload[k] = v
	}
	return c
}

func (TextContent) ContentType() ContentType     { return ContentText }
func (FileContent) ContentType() ContentType     { return ContentFile }
func (TemplateContent) ContentType() ContentType { return ContentTemplate }
func (JSONContent) ContentType() ContentType     { return ContentJSON }

func (c TextContent) MarshalJSON() ([]byte, error) {
	type alias TextContent
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		alias
	}{ContentText, alias(c)})
}

func (c FileContent) MarshalJSON() ([]byte, error) {
	type alias FileContent
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		alias
	}{ContentFile, alias(c)})
}

func (c TemplateContent) MarshalJSON() ([]byte, error) {
	type alias TemplateContent
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		alias
	}{ContentTemplate, alias(c)})
}

func (c JSONContent) MarshalJSON() ([]byte, error) {
	type alias JSONContent
	if c.Payload == nil {
		c.Payload = map[string]any{}
	}
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		alias
	}{ContentJSON, alias(c)})
}

func (c *TemplateContent) UnmarshalJSON(data []byte) error {
	type alias TemplateContent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Fields == nil {
		a.Fields = map[string]string{}
	}
	*c = TemplateContent(a)
	return nil
}

func (c *JSONContent) UnmarshalJSON(data []byte) error {
	type alias JSONContent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Payload == nil {
		a.Payload = map[string]any{}
	}
	*c = JSONContent(a)
	return nil
}

// DecodeContent decodes a single content object, selecting the variant from
// its "type" field.
func DecodeContent(data []byte) (Content, error) {
	var head struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	var c Content
	switch head.Type {
	case ContentText:
		c = &TextContent{}
	case ContentFile:
		c = &FileContent{}
	case ContentTemplate:
		c = &TemplateContent{}
	case ContentJSON:
		c = &JSONContent{}
	default:
		return nil, &UnknownTypeError{Union: "content", Value: string(head.Type), Known: knownContentTypes}
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode %s content: %w", head.Type, err)
	}
	return c, nil
}

func decodeContents(raw []json.RawMessage) ([]Content, error) {
	out := make([]Content, 0, len(raw))
	for i, r := range raw {
		c, err := DecodeContent(r)
		if err != nil {
			return nil, fmt.Errorf("contents[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}
