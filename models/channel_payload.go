package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChannelType names a delivery channel
type ChannelType string

const (
	ChannelSMS   ChannelType = "sms"
	ChannelMMS   ChannelType = "mms"
	ChannelKakao ChannelType = "kakao"
)

// Valid checks if the channel is supported
func (c ChannelType) Valid() bool {
	switch c {
	case ChannelSMS, ChannelMMS, ChannelKakao:
		return true
	}
	return false
}

// SupportsMedia reports whether the channel can carry an attachment
func (c ChannelType) SupportsMedia() bool {
	return c == ChannelMMS || c == ChannelKakao
}

// ChannelOptions stores the channel-specific fields that are not shared by all channels
type ChannelOptions struct {
	Subject       *string       `json:"subject,omitempty"`
	TemplateCode  *string       `json:"template_code,omitempty"`
	Buttons       []KakaoButton `json:"buttons,omitempty"`
	FallbackToSMS bool          `json:"fallback_to_sms,omitempty"`
}

// Value implements the driver.Valuer interface for ChannelOptions
func (o ChannelOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements the sql.Scanner interface for ChannelOptions
func (o *ChannelOptions) Scan(value any) error {
	if value == nil {
		*o = ChannelOptions{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ChannelOptions", value)
	}
	return json.Unmarshal(bytes, o)
}

// KakaoButton is a link button attached to a Kakao notification
type KakaoButton struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ChannelPayload is the message body for exactly one channel
type ChannelPayload interface {
	Channel() ChannelType
	Text() string
	Media() *string
	Validate() error
}

// SMSPayload is a plain text message
type SMSPayload struct {
	Body string
}

func (p SMSPayload) Channel() ChannelType { return ChannelSMS }
func (p SMSPayload) Text() string         { return p.Body }
func (p SMSPayload) Media() *string       { return nil }

func (p SMSPayload) Validate() error {
	if strings.TrimSpace(p.Body) == "" {
		return errors.New("sms body is required")
	}
	return nil
}

// MMSPayload carries a subject, text and one image
type MMSPayload struct {
	Subject  string
	Body     string
	MediaRef *string
}

func (p MMSPayload) Channel() ChannelType { return ChannelMMS }
func (p MMSPayload) Text() string         { return p.Body }
func (p MMSPayload) Media() *string       { return p.MediaRef }

func (p MMSPayload) Validate() error {
	if strings.TrimSpace(p.Body) == "" {
		return errors.New("mms body is required")
	}
	if p.MediaRef == nil || strings.TrimSpace(*p.MediaRef) == "" {
		return errors.New("mms media reference is required")
	}
	return nil
}

// KakaoPayload is a template-based Kakao notification
type KakaoPayload struct {
	TemplateCode  string
	Body          string
	Buttons       []KakaoButton
	ImageRef      *string
	FallbackToSMS bool
}

func (p KakaoPayload) Channel() ChannelType { return ChannelKakao }
func (p KakaoPayload) Text() string         { return p.Body }
func (p KakaoPayload) Media() *string       { return p.ImageRef }

func (p KakaoPayload) Validate() error {
	if strings.TrimSpace(p.TemplateCode) == "" {
		return errors.New("kakao template code is required")
	}
	if strings.TrimSpace(p.Body) == "" {
		return errors.New("kakao body is required")
	}
	for _, b := range p.Buttons {
		if b.Name == "" || b.URL == "" {
			return errors.New("kakao buttons need a name and url")
		}
	}
	return nil
}

// NewChannelPayload assembles the typed payload for a channel from stored fields
func NewChannelPayload(channel ChannelType, text string, mediaRef *string, opts ChannelOptions) (ChannelPayload, error) {
	var p ChannelPayload
	switch channel {
	case ChannelSMS:
		p = SMSPayload{Body: text}
	case ChannelMMS:
		subject := ""
		if opts.Subject != nil {
			subject = *opts.Subject
		}
		p = MMSPayload{Subject: subject, Body: text, MediaRef: mediaRef}
	case ChannelKakao:
		code := ""
		if opts.TemplateCode != nil {
			code = *opts.TemplateCode
		}
		p = KakaoPayload{TemplateCode: code, Body: text, Buttons: opts.Buttons, ImageRef: mediaRef, FallbackToSMS: opts.FallbackToSMS}
	default:
		return nil, fmt.Errorf("unsupported channel %q", channel)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
