// Package news is the HTTP client for the news collaborator used by
// NOTIFICATION steps that ask for headlines.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/undarez/synexa-sub001/internal/infrastructure/config"
	"github.com/undarez/synexa-sub001/internal/infrastructure/retry"
)

var (
	// ErrNotConfigured is returned when no news URL is set.
	ErrNotConfigured = errors.New("news: service url not configured")

	// ErrUpstream wraps non-2xx answers from the news service.
	ErrUpstream = errors.New("news: upstream error")
)

const maxResponseSize = 1 << 20

// Article is one headline.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Result is the news service answer.
type Result struct {
	Articles     []Article `json:"articles"`
	TotalResults int       `json:"totalResults"`
	Sources      []string  `json:"sources"`
	LastUpdate   time.Time `json:"lastUpdate"`
}

// Client calls the news service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      retry.Config
}

// New creates a Client from cfg.
func New(cfg config.NewsConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.DefaultConfig(),
	}
}

// Search returns articles matching query. An empty query asks for top headlines.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL
	if query != "" {
		endpoint += "?" + url.Values{"q": []string{query}}.Encode()
	}

	var result Result
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-Api-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return retry.Permanent(fmt.Errorf("%w: unauthorized, check services.news.api_key", ErrUpstream))
		case resp.StatusCode >= http.StatusBadRequest:
			err := fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
			if retry.IsRetryableHTTPStatus(resp.StatusCode) {
				return err
			}
			return retry.Permanent(err)
		}

		if err := json.Unmarshal(body, &result); err != nil {
			return retry.Permanent(fmt.Errorf("decoding news result: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
