package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/models"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Variant selects which transcript rendering a caller wants.
type Variant string

const (
	// VariantInternal is the staff-facing transcript, rendered in the
	// business's working language.
	VariantInternal Variant = "internal"

	// VariantPublic is the customer-facing transcript, always rendered in
	// the conversation's original language.
	VariantPublic Variant = "public"
)

// UseTranslated is the language policy for transcript variants, kept as a
// named function because it is easy to invert by accident: the internal
// variant uses translated text unless the conversation already speaks the
// target language; the public variant never does.
func UseTranslated(variant Variant, conversationLang, targetLang string) bool {
	if variant != VariantInternal {
		return false
	}
	return !strings.EqualFold(conversationLang, targetLang)
}

// Input bundles everything one transcript rendering needs.
type Input struct {
	Conversation *models.Conversation
	Messages     []*models.Message
	Attachments  []*models.Attachment
	Variant      Variant
	TargetLang   string
}

// Service renders conversation transcripts as standalone HTML documents.
// Message bodies are markdown converted through goldmark.
type Service struct {
	markdown goldmark.Markdown
	tmpl     *template.Template
	logger   arbor.ILogger
}

// NewService creates a transcript renderer.
func NewService(logger arbor.ILogger) (*Service, error) {
	tmpl, err := template.New("transcript").Parse(transcriptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcript template: %w", err)
	}
	return &Service{
		markdown: goldmark.New(
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

type renderedMessage struct {
	Role   string
	IsUser bool
	Body   template.HTML
	Time   string
	Images []*models.Attachment
	Files  []renderedFile
}

// renderedFile is a non-image attachment shown as a labeled link list.
type renderedFile struct {
	Name  string
	Links []fileLink
}

type fileLink struct {
	Label string
	URL   string
}

func fileLinks(att *models.Attachment) []fileLink {
	var links []fileLink
	if att.OriginalURL != "" {
		links = append(links, fileLink{Label: "original", URL: att.OriginalURL})
	}
	if att.PreviewURL != "" {
		links = append(links, fileLink{Label: "preview", URL: att.PreviewURL})
	}
	if att.ExternalURL != "" {
		links = append(links, fileLink{Label: "external", URL: att.ExternalURL})
	}
	return links
}

type renderedPage struct {
	Title    string
	ChatName string
	Started  string
	Finished string
	Messages []renderedMessage
}

// Render produces the HTML document for one transcript variant.
func (s *Service) Render(input *Input) (string, error) {
	if input.Conversation == nil {
		return "", fmt.Errorf("conversation is required")
	}

	useTranslated := UseTranslated(input.Variant, input.Conversation.Language, input.TargetLang)

	attachmentsByMsg := make(map[string][]*models.Attachment)
	for _, att := range input.Attachments {
		attachmentsByMsg[att.MessageID] = append(attachmentsByMsg[att.MessageID], att)
	}

	page := renderedPage{
		Title:    "Conversation " + input.Conversation.ChatName,
		ChatName: input.Conversation.ChatName,
		Started:  input.Conversation.StartedAt.Format(time.RFC1123),
	}
	if input.Conversation.FinishedAt != nil {
		page.Finished = input.Conversation.FinishedAt.Format(time.RFC1123)
	}

	for _, msg := range input.Messages {
		text := msg.Content
		if useTranslated && msg.Translated != "" {
			text = msg.Translated
		}

		body, err := s.renderMarkdown(text)
		if err != nil {
			return "", fmt.Errorf("failed to render message %s: %w", msg.ID, err)
		}

		rendered := renderedMessage{
			Role:   string(msg.Role),
			IsUser: msg.Role == models.RoleUser,
			Body:   body,
			Time:   msg.CreatedAt.Format("2006-01-02 15:04"),
		}
		for _, att := range attachmentsByMsg[msg.ID] {
			if att.DeletedAt != nil {
				continue
			}
			if att.IsImage() && att.PreviewURL != "" {
				rendered.Images = append(rendered.Images, att)
			} else {
				rendered.Files = append(rendered.Files, renderedFile{
					Name:  att.FileName,
					Links: fileLinks(att),
				})
			}
		}
		page.Messages = append(page.Messages, rendered)
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("failed to execute transcript template: %w", err)
	}

	s.logger.Debug().
		Str("chat_name", input.Conversation.ChatName).
		Str("variant", string(input.Variant)).
		Int("messages", len(page.Messages)).
		Msg("Rendered transcript")

	return buf.String(), nil
}

func (s *Service) renderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	// goldmark escapes raw HTML by default, so the output is safe to embed.
	return template.HTML(buf.String()), nil
}

const transcriptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; max-width: 720px; margin: 0 auto; padding: 24px; color: #222; }
header { border-bottom: 2px solid #ddd; padding-bottom: 12px; margin-bottom: 24px; }
header h1 { font-size: 20px; margin: 0 0 4px 0; }
header p { color: #777; font-size: 13px; margin: 2px 0; }
.message { margin-bottom: 20px; padding: 12px 16px; border-radius: 8px; }
.message.user { background: #eef4fb; }
.message.bot { background: #f6f6f6; }
.message .role { font-weight: bold; font-size: 13px; margin-bottom: 6px; }
.message .time { color: #999; font-size: 12px; float: right; }
.message img.preview { max-width: 100%; border-radius: 4px; margin-top: 8px; }
.message ul.files { font-size: 13px; margin: 8px 0 0 0; padding-left: 18px; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<p>Started: {{.Started}}</p>
{{if .Finished}}<p>Finished: {{.Finished}}</p>{{end}}
</header>
{{range .Messages}}
<div class="message {{if .IsUser}}user{{else}}bot{{end}}">
<span class="time">{{.Time}}</span>
<div class="role">{{.Role}}</div>
{{.Body}}
{{range .Images}}<img class="preview" src="{{.PreviewURL}}" alt="{{.FileName}}">{{end}}
{{if .Files}}<ul class="files">{{range .Files}}<li>{{.Name}}{{range .Links}} <a href="{{.URL}}">[{{.Label}}]</a>{{end}}</li>{{end}}</ul>{{end}}
</div>
{{end}}
</body>
</html>
`
