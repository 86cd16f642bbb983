package models

import "time"

// ConversationStatus is the lifecycle state of a conversation. The only
// legal transition is active -> closed.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// ConversationMeta holds the sparse, rarely-queried derived state of a
// conversation. Modeled as a narrow typed value object rather than an
// untyped map so merges stay typo-proof.
type ConversationMeta struct {
	Summary            string     `json:"summary,omitempty"`
	InternalHTMLURL    string     `json:"internal_html_url,omitempty"`
	PublicHTMLURL      string     `json:"public_html_url,omitempty"`
	InternalPDFFileID  string     `json:"internal_pdf_file_id,omitempty"`
	PublicPDFFileID    string     `json:"public_pdf_file_id,omitempty"`
	InternalPDFLink    string     `json:"internal_pdf_link,omitempty"`
	PublicPDFLink      string     `json:"public_pdf_link,omitempty"`
	ArtifactsExpireAt  *time.Time `json:"artifacts_expire_at,omitempty"`
	FinalizeReason     string     `json:"finalize_reason,omitempty"`
	FinalizedAt        *time.Time `json:"finalized_at,omitempty"`
}

// Merge overlays non-zero fields of next onto m, preserving unrelated
// prior keys the way a {...prev, ...next} map merge would.
func (m ConversationMeta) Merge(next ConversationMeta) ConversationMeta {
	out := m
	if next.Summary != "" {
		out.Summary = next.Summary
	}
	if next.InternalHTMLURL != "" {
		out.InternalHTMLURL = next.InternalHTMLURL
	}
	if next.PublicHTMLURL != "" {
		out.PublicHTMLURL = next.PublicHTMLURL
	}
	if next.InternalPDFFileID != "" {
		out.InternalPDFFileID = next.InternalPDFFileID
	}
	if next.PublicPDFFileID != "" {
		out.PublicPDFFileID = next.PublicPDFFileID
	}
	if next.InternalPDFLink != "" {
		out.InternalPDFLink = next.InternalPDFLink
	}
	if next.PublicPDFLink != "" {
		out.PublicPDFLink = next.PublicPDFLink
	}
	if next.ArtifactsExpireAt != nil {
		out.ArtifactsExpireAt = next.ArtifactsExpireAt
	}
	if next.FinalizeReason != "" {
		out.FinalizeReason = next.FinalizeReason
	}
	if next.FinalizedAt != nil {
		out.FinalizedAt = next.FinalizedAt
	}
	return out
}

// Conversation represents one chat session, keyed by its human-assignable
// chat name.
type Conversation struct {
	ChatName       string             `json:"chat_name" badgerhold:"key"`
	Status         ConversationStatus `json:"status" badgerhold:"index"`
	Language       string             `json:"language"` // Language of the original text
	MessageCount   int                `json:"message_count"`
	NotifyInternal bool               `json:"notify_internal"`
	UserEmails     []string           `json:"user_emails,omitempty"`
	Meta           ConversationMeta   `json:"meta"`
	StartedAt      time.Time          `json:"started_at"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	FinishedAt     *time.Time         `json:"finished_at,omitempty"`
}
