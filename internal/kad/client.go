package kad

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://kad.arbitr.ru"

// Browser identities rotated per request. The registry throttles clients
// that look automated.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
}

// Client fetches case cards over plain HTTP and parses them best-effort.
// It implements Scraper; the production browser-automation scraper plugs in
// through the same interface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retries    int
	minPause   time.Duration
	maxPause   time.Duration
	log        *slog.Logger
}

type ClientOption func(*Client)

// WithBaseURL points the client at a different registry host (tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithPause overrides the randomized delay bounds between page loads.
func WithPause(min, max time.Duration) ClientOption {
	return func(c *Client) { c.minPause, c.maxPause = min, max }
}

func NewClient(timeout time.Duration, retries int, log *slog.Logger, opts ...ClientOption) *Client {
	if retries <= 0 {
		retries = 3
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		retries:    retries,
		minPause:   2 * time.Second,
		maxPause:   5 * time.Second,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCase loads the card page for a case and extracts its latest event and
// next hearing. Bounded page-load retries are internal to the scraper; the
// reconciliation core never retries.
func (c *Client) FetchCase(ctx context.Context, caseNumber string) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			if err := c.pause(ctx); err != nil {
				return Result{}, err
			}
		}

		result, err := c.fetchOnce(ctx, caseNumber)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err
		c.log.WarnContext(ctx, "case card fetch failed",
			"case", caseNumber, "attempt", attempt, "error", err)
	}
	return Result{}, fmt.Errorf("%w: %v", ErrNoData, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, caseNumber string) (Result, error) {
	cardURL := fmt.Sprintf("%s/Card?number=%s", c.baseURL, url.QueryEscape(caseNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("card page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	page := string(body)
	if PageBlocked(page) {
		return Result{}, fmt.Errorf("registry blocked the request for %s", caseNumber)
	}

	result, ok := ParseCard(page)
	if !ok {
		return Result{}, fmt.Errorf("no chronology items on the card for %s", caseNumber)
	}
	return result, nil
}

// pause sleeps a randomized interval, honoring cancellation.
func (c *Client) pause(ctx context.Context) error {
	delay := c.minPause
	if c.maxPause > c.minPause {
		delay += rand.N(c.maxPause - c.minPause)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases idle connections held by the transport.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Scraper = (*Client)(nil)
