// Package chat holds the vocabulary shared by the chat gateway, the
// aggregation buffer and the claim engine.
package chat

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies one conversation stream: the chat channel plus the
// participant writing in it. It is the aggregation key of the debounce buffer
// and, rendered with String, the identity that owns claims.
type Key struct {
	Channel     string `json:"channel"`
	Participant string `json:"participant"`
}

const keySeparator = "|"

// String renders the key as "<channel>|<participant>".
func (k Key) String() string {
	return k.Channel + keySeparator + k.Participant
}

// IsZero reports whether both parts are empty.
func (k Key) IsZero() bool {
	return k.Channel == "" && k.Participant == ""
}

// ParseKey is the inverse of Key.String.
func ParseKey(identity string) (Key, error) {
	channel, participant, ok := strings.Cut(identity, keySeparator)
	if !ok || channel == "" || participant == "" {
		return Key{}, fmt.Errorf("invalid chat identity %q", identity)
	}
	return Key{Channel: channel, Participant: participant}, nil
}

// Unit is one inbound item waiting in a batch. Immutable once created.
type Unit struct {
	MessageID string    `json:"messageId"`
	Text      string    `json:"text,omitempty"`
	MediaRef  string    `json:"mediaRef,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
	ArrivedAt time.Time `json:"arrivedAt"`
}

// HasMedia reports whether the unit carries an attachment.
func (u Unit) HasMedia() bool {
	return strings.TrimSpace(u.MediaRef) != ""
}

// InboundMessage is a message delivered by the chat gateway.
type InboundMessage struct {
	Key    Key
	Unit   Unit
	FromMe bool // sent from the seller's own account
}

// MergeText joins the non-empty unit texts with single spaces, in order.
func MergeText(units []Unit) string {
	parts := make([]string, 0, len(units))
	for _, unit := range units {
		if text := strings.TrimSpace(unit.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// FirstMedia returns the first attachment reference in units, if any.
func FirstMedia(units []Unit) (Unit, bool) {
	for _, unit := range units {
		if unit.HasMedia() {
			return unit, true
		}
	}
	return Unit{}, false
}
