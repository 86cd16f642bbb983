package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/models"
)

const (
	startQuality = 85
	minQuality   = 30
	qualityStep  = 10
)

// Service produces the size-capped JPEG derivative of an image attachment
// that transcripts embed inline. Previews are bounded in both pixel width
// and encoded bytes so transcript HTML stays mailable.
type Service struct {
	config      *common.FinalizeConfig
	blobs       interfaces.BlobStore
	attachments interfaces.AttachmentStorage
	logger      arbor.ILogger
}

// NewService creates a preview service.
func NewService(cfg *common.FinalizeConfig, blobs interfaces.BlobStore,
	attachments interfaces.AttachmentStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:      cfg,
		blobs:       blobs,
		attachments: attachments,
		logger:      logger,
	}
}

// EnsurePreview generates and stores the preview derivative for an image
// attachment if it does not have one yet. Existing previews get their
// expiry refreshed but are not regenerated. Non-image attachments are a
// no-op.
func (s *Service) EnsurePreview(ctx context.Context, att *models.Attachment, expiresAt time.Time) error {
	if !att.IsImage() || att.OriginalURL == "" {
		return nil
	}
	if att.PreviewURL != "" {
		att.ExpiresAt = expiresAt
		return s.attachments.SaveAttachment(ctx, att)
	}

	original, err := s.blobs.Get(ctx, att.OriginalURL)
	if err != nil {
		return fmt.Errorf("failed to load original for %s: %w", att.ID, err)
	}

	derived, err := s.derive(original)
	if err != nil {
		return fmt.Errorf("failed to derive preview for %s: %w", att.ID, err)
	}

	key := fmt.Sprintf("previews/%s/%s.jpg", att.ChatName, att.ID)
	url, err := s.blobs.Put(ctx, key, derived, "image/jpeg")
	if err != nil {
		return fmt.Errorf("failed to store preview for %s: %w", att.ID, err)
	}

	att.PreviewURL = url
	att.ExpiresAt = expiresAt
	if err := s.attachments.SaveAttachment(ctx, att); err != nil {
		return err
	}

	s.logger.Debug().
		Str("attachment_id", att.ID).
		Int("original_bytes", len(original)).
		Int("preview_bytes", len(derived)).
		Msg("Generated attachment preview")

	return nil
}

// derive resizes to the target width and walks JPEG quality down until the
// encoding fits the byte ceiling. If minimum quality still overflows, the
// width is halved once and the quality walk repeats.
func (s *Service) derive(original []byte) ([]byte, error) {
	img, err := decode(original)
	if err != nil {
		return nil, err
	}

	maxWidth := s.config.PreviewMaxWidth
	if maxWidth <= 0 {
		maxWidth = 800
	}
	maxBytes := s.config.PreviewMaxBytes
	if maxBytes <= 0 {
		maxBytes = 200 * 1024
	}

	for _, width := range []int{maxWidth, maxWidth / 2} {
		resized := resize(img, width)
		for quality := startQuality; quality >= minQuality; quality -= qualityStep {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
				return nil, err
			}
			if buf.Len() <= maxBytes {
				return buf.Bytes(), nil
			}
		}
	}
	return nil, fmt.Errorf("preview exceeds %d bytes at minimum quality", maxBytes)
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// resize scales the image to the target width with nearest-neighbor
// sampling, preserving aspect ratio. Images narrower than the target are
// returned as-is.
func resize(img image.Image, targetWidth int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= targetWidth || srcW == 0 {
		return img
	}

	targetHeight := srcH * targetWidth / srcW
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	for y := 0; y < targetHeight; y++ {
		srcY := bounds.Min.Y + y*srcH/targetHeight
		for x := 0; x < targetWidth; x++ {
			srcX := bounds.Min.X + x*srcW/targetWidth
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}
