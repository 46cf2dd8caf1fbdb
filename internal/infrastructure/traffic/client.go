// Package traffic is the HTTP client for the traffic collaborator used by
// NOTIFICATION steps that mention traffic.
package traffic

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
	// ErrNotConfigured is returned when no traffic URL is set.
	ErrNotConfigured = errors.New("traffic: service url not configured")

	// ErrUpstream wraps non-2xx answers from the traffic service.
	ErrUpstream = errors.New("traffic: upstream error")
)

// maxResponseSize caps the decoded body.
const maxResponseSize = 1 << 20

// Location is a geocoded point.
type Location struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Route is one candidate itinerary.
type Route struct {
	Summary                  string   `json:"summary"`
	DistanceMeters           int      `json:"distanceMeters"`
	DurationSeconds          int      `json:"durationSeconds"`
	DurationInTrafficSeconds int      `json:"durationInTrafficSeconds,omitempty"`
	Warnings                 []string `json:"warnings,omitempty"`
}

// Report is the traffic service answer.
type Report struct {
	Origin              string    `json:"origin"`
	Destination         string    `json:"destination"`
	UserLocation        *Location `json:"userLocation,omitempty"`
	DestinationLocation *Location `json:"destinationLocation,omitempty"`
	Routes              []Route   `json:"routes"`
	LastUpdate          time.Time `json:"lastUpdate"`
}

// Query selects a route. Origin may be empty, in which case the service
// uses the user's last known position.
type Query struct {
	Origin      string
	Destination string
}

// Client calls the traffic service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
}

// New creates a Client from cfg.
func New(cfg config.TrafficConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.DefaultConfig(),
	}
}

// GetTraffic fetches the current traffic report for q.
func (c *Client) GetTraffic(ctx context.Context, q Query) (*Report, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("destination", q.Destination)
	if q.Origin != "" {
		params.Set("origin", q.Origin)
	}
	endpoint := c.baseURL + "?" + params.Encode()

	var report Report
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			err := fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
			if retry.IsRetryableHTTPStatus(resp.StatusCode) {
				return err
			}
			return retry.Permanent(err)
		}

		if err := json.Unmarshal(body, &report); err != nil {
			return retry.Permanent(fmt.Errorf("decoding traffic report: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
