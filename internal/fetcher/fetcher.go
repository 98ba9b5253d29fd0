// Package fetcher handles feed downloading, parsing, and normalization
// of raw items into posts.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrEmptyFeed reports an absent or implausibly small feed response.
var ErrEmptyFeed = errors.New("feed response empty or too short")

const (
	// minFeedBytes guards against transient empty or garbage responses.
	minFeedBytes = 256
	maxFeedBytes = 5 * 1024 * 1024
)

// Fetcher downloads and parses the configured feed.
type Fetcher struct {
	client  HTTPClient
	proxy   HTTPClient
	url     string
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Fetcher that requests the feed directly.
func New(client HTTPClient, feedURL string, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		url:     feedURL,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// NewWithProxy creates a Fetcher that tries the proxy client first and
// falls back to the direct client when the proxy request fails.
func NewWithProxy(client, proxy HTTPClient, feedURL string, log *slog.Logger) *Fetcher {
	f := New(client, feedURL, log)
	f.proxy = proxy
	return f
}

// ProxyClient builds an HTTP client that routes requests through proxyURL.
func ProxyClient(proxyURL string) (*http.Client, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		Timeout:   30 * time.Second,
	}, nil
}

// Fetch downloads and parses the feed, returning its raw items.
func (f *Fetcher) Fetch(ctx context.Context) ([]*gofeed.Item, error) {
	if f.proxy != nil {
		items, err := f.fetchWith(ctx, f.proxy)
		if err == nil {
			return items, nil
		}
		f.log.Warn("proxy fetch failed, falling back to direct", "url", f.url, "error", err)
	}
	return f.fetchWith(ctx, f.client)
}

func (f *Fetcher) fetchWith(ctx context.Context, client HTTPClient) ([]*gofeed.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "FeedPushBot/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) < minFeedBytes {
		return nil, fmt.Errorf("%w: got %d bytes", ErrEmptyFeed, len(body))
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed.Items, nil
}
