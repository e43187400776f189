package bus

import "time"

// EventKind classifies what the end user did on a channel.
type EventKind string

const (
	KindText    EventKind = "user_send_text"
	KindButton  EventKind = "user_click_button"
	KindFollow  EventKind = "user_follow"
	KindImage   EventKind = "user_send_image"
	KindSticker EventKind = "user_send_sticker"
	KindFile    EventKind = "user_send_file"
)

// CarriesText reports whether events of this kind contribute text to a turn.
func (k EventKind) CarriesText() bool {
	return k == KindText || k == KindButton
}

// IsMedia reports whether the kind is an attachment the assistant cannot read.
func (k EventKind) IsMedia() bool {
	return k == KindImage || k == KindSticker || k == KindFile
}

// InboundEvent is one normalized event delivered by a channel adapter.
// ConversationID is scoped by channel, e.g. "zalo:12345".
type InboundEvent struct {
	Channel        string            `json:"channel"`
	Kind           EventKind         `json:"kind"`
	ConversationID string            `json:"conversation_id"`
	ActorID        string            `json:"actor_id"`
	MessageID      string            `json:"message_id,omitempty"`
	Text           string            `json:"text,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is one reply addressed to a conversation.
type OutboundMessage struct {
	Channel        string            `json:"channel"`
	ConversationID string            `json:"conversation_id"`
	RecipientID    string            `json:"recipient_id"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Sender delivers an outbound message on one channel.
type Sender func(OutboundMessage) error
