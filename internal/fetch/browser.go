package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// MinRenderedTextLength is the extracted-text length below which a page is
// assumed to be a JavaScript-rendered shell.
const MinRenderedTextLength = 500

// ShouldRender reports whether the statically fetched text is too thin and
// the page should go through the headless browser instead.
func ShouldRender(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinRenderedTextLength
}

// RenderedHTML loads a page in a headless browser and returns the rendered
// document. Requires Chrome or Chromium on the host.
func RenderedHTML(ctx context.Context, urlStr string, timeout time.Duration, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	log.Debug("rendering page in headless browser", zap.String("url", urlStr))

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		// Give client-side frameworks a moment to paint the posting.
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	log.Debug("rendered page", zap.String("url", urlStr), zap.Int("bytes", len(html)))
	return html, nil
}
