package fetcher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// HeadlessFetcher renders the page in headless Chrome so script-built
// postings have their content in the DOM. It needs a Chrome binary.
type HeadlessFetcher struct {
	timeout time.Duration
	settle  time.Duration
	logger  *log.Logger
}

func NewHeadlessFetcher(timeout time.Duration, logger *log.Logger) *HeadlessFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HeadlessFetcher{timeout: timeout, settle: 1500 * time.Millisecond, logger: logger}
}

func (f *HeadlessFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("nil fetcher")
	}
	if err := validateURL(rawURL); err != nil {
		return "", err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(browserUserAgent),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	reqCtx, reqCancel := context.WithTimeout(browserCtx, f.timeout)
	defer reqCancel()

	start := time.Now()
	var html string
	err := chromedp.Run(reqCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if f.logger != nil {
			f.logger.Printf("[Fetch] headless failed url=%s err=%v", rawURL, err)
		}
		return "", fmt.Errorf("headless fetch %s: %w", rawURL, err)
	}
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("headless fetch %s: %w", rawURL, ErrEmptyBody)
	}

	if f.logger != nil {
		f.logger.Printf("[Fetch] headless ok url=%s bytes=%d duration=%s", rawURL, len(html), time.Since(start))
	}
	return html, nil
}

var _ Fetcher = (*HeadlessFetcher)(nil)
