package pdf

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

const renderTimeout = 60 * time.Second

// Service renders HTML documents to PDF bytes through a headless browser.
// One browser context is kept alive for the process lifetime; renders are
// serialized because a chromedp context runs one tab.
type Service struct {
	logger arbor.ILogger

	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
}

// NewService creates the PDF renderer and starts its headless browser.
func NewService(logger arbor.ILogger) (*Service, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup probe so a missing Chrome binary fails at boot, not mid-run.
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("headless browser failed startup test: %w", err)
	}

	logger.Debug().Msg("PDF renderer browser started")

	return &Service{
		logger:          logger,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
	}, nil
}

// Render converts an HTML document to PDF bytes with A4 print margins.
func (s *Service) Render(ctx context.Context, html string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(s.browserCtx, renderTimeout)
	defer cancel()

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate(dataURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).   // A4 inches
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.6).
				WithMarginLeft(0.6).
				WithMarginRight(0.6).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pdf render failed: %w", err)
	}

	s.logger.Debug().
		Int("html_bytes", len(html)).
		Int("pdf_bytes", len(pdf)).
		Dur("duration", time.Since(start)).
		Msg("Rendered PDF")

	return pdf, nil
}

// Close shuts the headless browser down.
func (s *Service) Close() error {
	s.browserCancel()
	s.allocatorCancel()
	return nil
}
