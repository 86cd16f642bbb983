package finalize

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
	"github.com/ternarybob/facet/internal/services/preview"
	"github.com/ternarybob/facet/internal/services/transcript"
)

// Request asks for one conversation to be finalized.
type Request struct {
	ChatName       string `json:"chat_name" validate:"required"`
	Reason         string `json:"reason"`
	NotifyInternal bool   `json:"notify_internal"`
}

// Result reports what one finalization call did.
type Result struct {
	ChatName        string `json:"chat_name"`
	Skipped         bool   `json:"skipped"` // Missing or already closed
	InternalHTMLURL string `json:"internal_html_url,omitempty"`
	PublicHTMLURL   string `json:"public_html_url,omitempty"`
	InternalPDFLink string `json:"internal_pdf_link,omitempty"`
	PublicPDFLink   string `json:"public_pdf_link,omitempty"`
	EmailSent       bool   `json:"email_sent"`
}

// Service runs the finalization pipeline that closes a conversation and
// produces its durable artifacts. Steps run in a fixed order; previews,
// translations, rendering, and publishing must all succeed before the
// status flips to closed, and email is best-effort after that.
type Service struct {
	config        *common.FinalizeConfig
	previews      *preview.Service
	translator    *Translator
	transcripts   *transcript.Service
	pdf           interfaces.PDFRenderer
	blobs         interfaces.BlobStore
	drive         interfaces.DriveStore
	mailer        interfaces.Mailer
	conversations interfaces.ConversationStorage
	messages      interfaces.MessageStorage
	attachments   interfaces.AttachmentStorage
	logger        arbor.ILogger
}

// NewService creates the finalization pipeline.
func NewService(cfg *common.FinalizeConfig, previews *preview.Service, translator *Translator,
	transcripts *transcript.Service, pdfRenderer interfaces.PDFRenderer, blobs interfaces.BlobStore,
	driveStore interfaces.DriveStore, mail interfaces.Mailer,
	conversations interfaces.ConversationStorage, messages interfaces.MessageStorage,
	attachments interfaces.AttachmentStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:        cfg,
		previews:      previews,
		translator:    translator,
		transcripts:   transcripts,
		pdf:           pdfRenderer,
		blobs:         blobs,
		drive:         driveStore,
		mailer:        mail,
		conversations: conversations,
		messages:      messages,
		attachments:   attachments,
		logger:        logger,
	}
}

// Finalize closes a conversation. Missing or already-closed conversations
// are a no-op. Any failure before the status transition leaves the
// conversation active and retryable.
func (s *Service) Finalize(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{ChatName: req.ChatName}

	conv, err := s.conversations.GetConversation(ctx, req.ChatName)
	if err != nil {
		if common.IsNotFound(err) {
			result.Skipped = true
			s.logger.Info().Str("chat_name", req.ChatName).Msg("Finalize skipped, conversation not found")
			return result, nil
		}
		return nil, err
	}
	if conv.Status == models.ConversationClosed {
		result.Skipped = true
		s.logger.Info().Str("chat_name", req.ChatName).Msg("Finalize skipped, already closed")
		return result, nil
	}

	msgs, err := s.messages.GetMessages(ctx, conv.ChatName)
	if err != nil {
		return nil, err
	}
	atts, err := s.attachments.GetAttachmentsByChat(ctx, conv.ChatName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	now := time.Now()
	expiresAt := now.Add(s.config.ArtifactExpiry)

	// Step 1: previews must exist before rendering, which embeds preview
	// URLs only.
	for _, att := range atts {
		if att.DeletedAt != nil {
			continue
		}
		if err := s.previews.EnsurePreview(ctx, att, expiresAt); err != nil {
			return nil, fmt.Errorf("preview generation failed: %w", err)
		}
	}

	// Step 2: translations.
	if err := s.translator.EnsureTranslations(ctx, msgs, conv.Language, s.config.TargetLanguage); err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	// Steps 3-4: render both HTML variants and their PDFs.
	finishedAt := now
	conv.FinishedAt = &finishedAt

	internalHTML, err := s.render(conv, msgs, atts, transcript.VariantInternal)
	if err != nil {
		return nil, err
	}
	publicHTML, err := s.render(conv, msgs, atts, transcript.VariantPublic)
	if err != nil {
		return nil, err
	}

	internalPDF, err := s.pdf.Render(ctx, internalHTML)
	if err != nil {
		return nil, fmt.Errorf("internal pdf render failed: %w", err)
	}
	publicPDF, err := s.pdf.Render(ctx, publicHTML)
	if err != nil {
		return nil, fmt.Errorf("public pdf render failed: %w", err)
	}

	// Step 5: publish all four artifacts under one shared expiry.
	meta, err := s.publish(ctx, conv.ChatName, internalHTML, publicHTML, internalPDF, publicPDF, expiresAt)
	if err != nil {
		return nil, err
	}
	conv.Meta = conv.Meta.Merge(*meta)

	// Step 6: the one-way transition.
	conv.Status = models.ConversationClosed
	if err := s.conversations.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to close conversation: %w", err)
	}

	// Step 7: email is best-effort; the mailer writes the delivery log.
	result.EmailSent = s.notify(ctx, conv, req)

	// Step 8: audit stamp, kept out of the closing update so its failure
	// cannot reopen anything.
	finalizedAt := time.Now()
	conv.Meta = conv.Meta.Merge(models.ConversationMeta{
		FinalizeReason: req.Reason,
		FinalizedAt:    &finalizedAt,
	})
	if err := s.conversations.SaveConversation(ctx, conv); err != nil {
		s.logger.Warn().Err(err).Str("chat_name", conv.ChatName).Msg("Audit stamp write failed")
	}

	result.InternalHTMLURL = conv.Meta.InternalHTMLURL
	result.PublicHTMLURL = conv.Meta.PublicHTMLURL
	result.InternalPDFLink = conv.Meta.InternalPDFLink
	result.PublicPDFLink = conv.Meta.PublicPDFLink

	s.logger.Info().
		Str("chat_name", conv.ChatName).
		Str("reason", req.Reason).
		Int("messages", len(msgs)).
		Bool("email_sent", result.EmailSent).
		Dur("duration", time.Since(start)).
		Msg("Conversation finalized")

	return result, nil
}

func (s *Service) render(conv *models.Conversation, msgs []*models.Message, atts []*models.Attachment, variant transcript.Variant) (string, error) {
	html, err := s.transcripts.Render(&transcript.Input{
		Conversation: conv,
		Messages:     msgs,
		Attachments:  atts,
		Variant:      variant,
		TargetLang:   s.config.TargetLanguage,
	})
	if err != nil {
		return "", fmt.Errorf("%s transcript render failed: %w", variant, err)
	}
	return html, nil
}

// publish uploads the HTML variants to blob storage and the PDFs to Drive,
// returning the metadata fragment to merge into the conversation.
func (s *Service) publish(ctx context.Context, chatName, internalHTML, publicHTML string, internalPDF, publicPDF []byte, expiresAt time.Time) (*models.ConversationMeta, error) {
	internalHTMLURL, err := s.blobs.Put(ctx, fmt.Sprintf("transcripts/%s/internal.html", chatName), []byte(internalHTML), "text/html; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("internal html upload failed: %w", err)
	}
	publicHTMLURL, err := s.blobs.Put(ctx, fmt.Sprintf("transcripts/%s/public.html", chatName), []byte(publicHTML), "text/html; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("public html upload failed: %w", err)
	}

	internalUpload, err := s.drive.Upload(ctx, chatName+"-internal.pdf", internalPDF, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("internal pdf upload failed: %w", err)
	}
	publicUpload, err := s.drive.Upload(ctx, chatName+"-public.pdf", publicPDF, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("public pdf upload failed: %w", err)
	}

	return &models.ConversationMeta{
		InternalHTMLURL:   internalHTMLURL,
		PublicHTMLURL:     publicHTMLURL,
		InternalPDFFileID: internalUpload.FileID,
		InternalPDFLink:   internalUpload.WebViewLink,
		PublicPDFFileID:   publicUpload.FileID,
		PublicPDFLink:     publicUpload.WebViewLink,
		ArtifactsExpireAt: &expiresAt,
	}, nil
}

// notify sends the internal notification email when both the request flag
// and the conversation's stored flag agree. Failures are logged by the
// mailer and never abort finalization.
func (s *Service) notify(ctx context.Context, conv *models.Conversation, req *Request) bool {
	if !req.NotifyInternal || !conv.NotifyInternal {
		return false
	}
	if s.config.InternalRecipient == "" {
		s.logger.Warn().Str("chat_name", conv.ChatName).Msg("Notify requested but no internal recipient configured")
		return false
	}

	subject := fmt.Sprintf("Conversation closed: %s", conv.ChatName)
	body := fmt.Sprintf(
		`<p>Conversation <strong>%s</strong> has been finalized.</p>
<ul>
<li><a href="%s">Internal transcript</a></li>
<li><a href="%s">Public transcript</a></li>
<li><a href="%s">Internal PDF</a></li>
<li><a href="%s">Public PDF</a></li>
</ul>`,
		conv.ChatName,
		conv.Meta.InternalHTMLURL, conv.Meta.PublicHTMLURL,
		conv.Meta.InternalPDFLink, conv.Meta.PublicPDFLink,
	)

	if _, err := s.mailer.Send(ctx, conv.ChatName, s.config.InternalRecipient, subject, body); err != nil {
		s.logger.Warn().Err(err).Str("chat_name", conv.ChatName).Msg("Notification email failed")
		return false
	}
	return true
}
