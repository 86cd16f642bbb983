// -----------------------------------------------------------------------
// Mailer Service - SMTP email sending with per-send audit logging
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
)

// Service sends HTML email over SMTP and records every delivery attempt as
// an EmailLog row, success or failure.
type Service struct {
	config *common.SMTPConfig
	logs   interfaces.LogStorage
	logger arbor.ILogger
}

// NewService creates a mailer service.
func NewService(cfg *common.SMTPConfig, logs interfaces.LogStorage, logger arbor.ILogger) *Service {
	return &Service{
		config: cfg,
		logs:   logs,
		logger: logger,
	}
}

// Send delivers one HTML email and returns the generated message id. The
// EmailLog row is written whether the send succeeds or fails.
func (s *Service) Send(ctx context.Context, chatName, to, subject, html string) (string, error) {
	messageID := "mail_" + uuid.New().String()
	err := s.send(to, subject, html, messageID)

	entry := &models.EmailLog{
		ID:        messageID,
		ChatName:  chatName,
		Recipient: to,
		Subject:   subject,
		Status:    "sent",
		MessageID: messageID,
		CreatedAt: time.Now(),
	}
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
	}
	if logErr := s.logs.AppendEmailLog(ctx, entry); logErr != nil {
		s.logger.Warn().Err(logErr).Str("to", to).Msg("Failed to write email log")
	}

	if err != nil {
		s.logger.Error().Err(err).Str("to", to).Str("subject", subject).Msg("Email send failed")
		return "", &common.UpstreamError{Service: "smtp", Err: err}
	}

	s.logger.Info().Str("to", to).Str("subject", subject).Msg("Email sent")
	return messageID, nil
}

func (s *Service) send(to, subject, html, messageID string) error {
	if s.config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if s.config.From == "" {
		return fmt.Errorf("from email not configured")
	}

	msg := s.buildMessage(to, subject, html, messageID)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if s.config.UseTLS {
		return s.sendWithTLS(addr, auth, to, msg)
	}
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}

// buildMessage assembles an RFC 5322 message with a base64-encoded HTML
// body. Base64 keeps long transcript lines under the 998-char line limit.
func (s *Service) buildMessage(to, subject, html, messageID string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", messageID, s.config.Host))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks(html))
	msg.WriteString("\r\n")
	return msg.String()
}

// sendWithTLS performs the STARTTLS handshake manually so TLS servers like
// Gmail work on port 587.
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, to, msg string) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: s.config.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// encodeBase64WithLineBreaks encodes content as base64 with 76-char line
// breaks per RFC 2045.
func encodeBase64WithLineBreaks(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	var result strings.Builder
	const lineLen = 76
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}
	return result.String()
}
