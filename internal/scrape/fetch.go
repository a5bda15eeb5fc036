// Package scrape gathers company website content for the pipeline: homepage
// and sitemap fetching, LLM-assisted sitemap classification, and bounded
// concurrent page collection.
package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/permit"
	"github.com/sells-group/messaging-cli/internal/webtext"
)

const (
	userAgent   = "Mozilla/5.0 (compatible; MessagingBot/1.0)"
	maxBodySize = 2 * 1024 * 1024
)

// Fetcher fetches pages over plain HTTP and converts them to plaintext.
// Every request holds one permit from the shared HTTP pool.
type Fetcher struct {
	client  *http.Client
	permits *permit.Pool
}

// NewFetcher creates a Fetcher. permits may be nil for unbounded use in tests.
func NewFetcher(timeout time.Duration, permits *permit.Pool) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		permits: permits,
	}
}

// FetchText fetches a URL and returns its visible text, truncated to the
// pipeline's per-page budget.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	body, err := f.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return webtext.ExtractText(string(body)), nil
}

// FetchRaw fetches a URL and returns the raw body. Used for sitemaps.
func (f *Fetcher) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	return f.fetch(ctx, url)
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	do := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return eris.Wrap(err, "scrape: create request")
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "scrape: fetch")
		}
		defer func() { _ = resp.Body.Close() }()

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return eris.Wrap(err, "scrape: read body")
		}

		if blocked, kind := detectBlock(resp, body); blocked {
			return eris.Errorf("scrape: blocked (%s) at %s", kind, url)
		}
		if resp.StatusCode >= 400 {
			return eris.Errorf("scrape: status %d from %s", resp.StatusCode, url)
		}
		return nil
	}

	if f.permits != nil {
		if err := f.permits.With(ctx, do); err != nil {
			return nil, err
		}
		return body, nil
	}
	if err := do(ctx); err != nil {
		return nil, err
	}
	return body, nil
}

// detectBlock checks a response for anti-bot interstitials. A blocked page
// parses fine but carries no company content, so it must not reach the LLM.
func detectBlock(resp *http.Response, body []byte) (bool, string) {
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, "cloudflare"
		}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, "cloudflare"
	}
	if strings.Contains(lower, "recaptcha") || strings.Contains(lower, "hcaptcha") {
		return true, "captcha"
	}
	return false, ""
}
