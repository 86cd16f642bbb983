package models

import "time"

// EmailLog records one delivery attempt. The log row is the unit of
// observability for email: it is written whether the send succeeded or
// failed, and never mutated afterwards.
type EmailLog struct {
	ID        string    `json:"id" badgerhold:"key"`
	ChatName  string    `json:"chat_name" badgerhold:"index"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"` // "sent" or "failed"
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookLog captures the raw payload and outcome of one inbound webhook
// or batch operation, written for both success and failure so runs can be
// replayed and debugged later.
type WebhookLog struct {
	ID        string    `json:"id" badgerhold:"key"`
	ChatName  string    `json:"chat_name" badgerhold:"index"`
	Payload   string    `json:"payload"` // Raw request body
	Status    string    `json:"status"`  // "ok" or "error"
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
