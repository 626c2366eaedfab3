package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// WebhookSettingLabel is the settings label that carries the outbound webhook URL.
const WebhookSettingLabel = "slack-webhook-url"

// ErrMissingConfiguration is returned when a payload carries no usable webhook URL.
var ErrMissingConfiguration = errors.New("slack webhook URL not found in settings")

// Setting is a named value supplied by the caller. The current value travels in Default.
type Setting struct {
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  string `json:"default"`
}

// NotifyPayload is the inbound event from the orchestration platform.
type NotifyPayload struct {
	Settings []Setting `json:"settings"`
	Message  string    `json:"message"`
}

// Destination returns the Default of the first setting labelled
// WebhookSettingLabel. Later settings with the same label are ignored,
// even when the first one is empty.
func (p NotifyPayload) Destination() (string, error) {
	for _, s := range p.Settings {
		if s.Label != WebhookSettingLabel {
			continue
		}
		if s.Default == "" {
			return "", ErrMissingConfiguration
		}
		return s.Default, nil
	}
	return "", ErrMissingConfiguration
}

// OutboundMessage is the body posted to the chat webhook.
type OutboundMessage struct {
	Text string `json:"text"`
}

const messageBanner = "🔔 *CI/CD Deployment Notification*\n📂 *Message:* "

// NewOutboundMessage wraps message in the notification banner.
func NewOutboundMessage(message string) OutboundMessage {
	return OutboundMessage{Text: messageBanner + message}
}

// Encode renders the message as JSON without HTML escaping so the text
// reaches the webhook unchanged.
func (m OutboundMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Task wraps one delivery for the dispatch queue. It is attempted once.
type Task struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Message     OutboundMessage `json:"message"`
	CreatedAt   time.Time       `json:"created_at"`
}
