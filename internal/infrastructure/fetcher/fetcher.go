package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultTimeout     = 25 * time.Second
	DefaultMaxBodySize = 5 << 20

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrEmptyBody  = errors.New("empty response body")
	ErrInvalidURL = errors.New("invalid fetch url")
)

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      browserUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"DNT":             "1",
	}
}

// CollyFetcher downloads the raw page with a browser-like request. It does
// not execute JavaScript.
type CollyFetcher struct {
	timeout     time.Duration
	maxBodySize int
	logger      *log.Logger
}

func NewCollyFetcher(timeout time.Duration, maxBodySize int, logger *log.Logger) *CollyFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &CollyFetcher{timeout: timeout, maxBodySize: maxBodySize, logger: logger}
}

func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("nil fetcher")
	}
	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := f.timeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}

	c := colly.NewCollector(colly.MaxBodySize(f.maxBodySize))
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders() {
			r.Headers.Set(k, v)
		}
	})

	var body string
	var status int
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	start := time.Now()
	if err := c.Visit(rawURL); err != nil && reqErr == nil {
		reqErr = err
	}
	c.Wait()

	if reqErr != nil {
		f.logf("[Fetch] failed url=%s status=%d err=%v", rawURL, status, reqErr)
		return "", fmt.Errorf("fetch %s: status %d: %w", rawURL, status, reqErr)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("fetch %s: %w", rawURL, ErrEmptyBody)
	}

	f.logf("[Fetch] ok url=%s status=%d bytes=%d duration=%s", rawURL, status, len(body), time.Since(start))
	return body, nil
}

func (f *CollyFetcher) logf(format string, args ...any) {
	if f.logger == nil {
		return
	}
	f.logger.Printf(format, args...)
}

// FallbackFetcher tries Primary first and Secondary only when Primary fails.
type FallbackFetcher struct {
	Primary   Fetcher
	Secondary Fetcher
	Logger    *log.Logger
}

func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f == nil || f.Primary == nil {
		return "", fmt.Errorf("nil fetcher")
	}
	body, err := f.Primary.Fetch(ctx, rawURL)
	if err == nil || f.Secondary == nil {
		return body, err
	}
	if ctx.Err() != nil {
		return "", err
	}
	if f.Logger != nil {
		f.Logger.Printf("[Fetch] primary failed, trying secondary url=%s err=%v", rawURL, err)
	}
	body, err2 := f.Secondary.Fetch(ctx, rawURL)
	if err2 != nil {
		return "", errors.Join(err, err2)
	}
	return body, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}

var (
	_ Fetcher = (*CollyFetcher)(nil)
	_ Fetcher = (*FallbackFetcher)(nil)
)
