package common

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// NewConversationID generates a unique conversation ID with the "conv_" prefix
// Format: conv_<uuid>
func NewConversationID() string {
	return "conv_" + uuid.New().String()
}

// NewMessageID generates a unique message ID with the "msg_" prefix
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}

// NewPageID generates a unique page ID with the "page_" prefix
func NewPageID() string {
	return "page_" + uuid.New().String()
}

// NewSectionID generates a unique section ID with the "sec_" prefix
func NewSectionID() string {
	return "sec_" + uuid.New().String()
}

// NewAttachmentID generates a unique attachment ID with the "att_" prefix
func NewAttachmentID() string {
	return "att_" + uuid.New().String()
}

// NewWebhookLogID generates a unique webhook log ID with the "wh_" prefix
func NewWebhookLogID() string {
	return "wh_" + uuid.New().String()
}

// NewChatName generates a server-side chat name when the client did not
// supply one. Format: <prefix>_<timestamp>_<random>.
func NewChatName(prefix string) string {
	if prefix == "" {
		prefix = "chat"
	}
	return fmt.Sprintf("%s_%d_%04d", prefix, time.Now().UnixMilli(), rand.Intn(10000))
}
