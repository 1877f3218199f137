package whatsapp

import (
	"strings"
	"time"

	"cashback_backend/internal/chat"
	"cashback_backend/platform/phone"

	"github.com/google/uuid"
)

// WebhookPayload is the message event GOWA posts to the configured webhook.
type WebhookPayload struct {
	ChatID    string         `json:"chat_id" validate:"required"`
	From      string         `json:"from"`
	SenderID  string         `json:"sender_id"`
	PushName  string         `json:"pushname"`
	IsFromMe  bool           `json:"is_from_me"`
	Timestamp string         `json:"timestamp"`
	Message   WebhookMessage `json:"message"`
	Image     *WebhookMedia  `json:"image,omitempty"`
}

type WebhookMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type WebhookMedia struct {
	MediaPath string `json:"media_path" validate:"required"`
	MimeType  string `json:"mime_type"`
	Caption   string `json:"caption"`
}

// IsGroup reports whether the event came from a group chat, which the
// claim flow does not serve.
func (p WebhookPayload) IsGroup() bool {
	return strings.HasSuffix(p.ChatID, "@g.us")
}

// Key returns the conversation key for the payload's chat.
func (p WebhookPayload) Key() chat.Key {
	participant := p.ChatID
	if at := strings.IndexByte(participant, '@'); at >= 0 {
		participant = participant[:at]
	}
	return chat.Key{Channel: Channel, Participant: phone.Digits(participant)}
}

// Unit converts the payload to a message unit. mediaRef is the stored
// attachment key, empty when the message carried none.
func (p WebhookPayload) Unit(mediaRef, mediaType string, now time.Time) chat.Unit {
	text := p.Message.Text
	if p.Image != nil && strings.TrimSpace(p.Image.Caption) != "" {
		text = strings.TrimSpace(text + " " + p.Image.Caption)
	}

	id := strings.TrimSpace(p.Message.ID)
	if id == "" {
		id = uuid.NewString()
	}

	arrived := now
	if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		arrived = ts
	}

	return chat.Unit{
		MessageID: id,
		Text:      text,
		MediaRef:  mediaRef,
		MediaType: mediaType,
		ArrivedAt: arrived.UTC(),
	}
}
