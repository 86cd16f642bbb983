package models

import "time"

// MessageRole identifies the author of a turn.
type MessageRole string

const (
	RoleUser MessageRole = "User"
	RoleBot  MessageRole = "BotCat"
)

// Message is one turn of a conversation. Sequence numbers are gapless and
// monotonic per conversation; translated content is filled during
// finalization and eventually non-null for every message of a closed
// conversation.
type Message struct {
	ID            string      `json:"id" badgerhold:"key"` // External message id, unique
	ChatName      string      `json:"chat_name" badgerhold:"index"`
	Role          MessageRole `json:"role"`
	Content       string      `json:"content"`    // Original markdown
	Translated    string      `json:"translated"` // Empty until translation completes
	HasAttachment bool        `json:"has_attachment"`
	HasLink       bool        `json:"has_link"`
	IsVoice       bool        `json:"is_voice"`
	Sequence      int         `json:"sequence"`
	CreatedAt     time.Time   `json:"created_at"`
}
