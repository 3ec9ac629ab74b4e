// Package geocode forwards address searches to Mapbox, scoped to Vietnam.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// MinQueryLength is the shortest query sent to the provider
const MinQueryLength = 2

// ErrNotConfigured is returned when no access token is set
var ErrNotConfigured = errors.New("geocoding token not configured")

// Feature is one search hit
type Feature struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	PlaceType []string  `json:"place_type"`
	Relevance float64   `json:"relevance"`
	Center    []float64 `json:"center"`
}

// FeatureCollection is the provider's result set
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Config holds provider settings
type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client calls the Mapbox forward geocoding API
type Client struct {
	http    *resty.Client
	token   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client. RequestsPerSecond <= 0 disables the outbound
// throttle.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout),
		token:   cfg.Token,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Configured reports whether the client has a token
func (c *Client) Configured() bool {
	return c.token != ""
}

// Forward searches Vietnamese addresses and places. Queries shorter than
// MinQueryLength return an empty collection without calling out.
func (c *Client) Forward(ctx context.Context, query string) (*FeatureCollection, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}, nil
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode throttled: %w", err)
	}

	var out FeatureCollection
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_token": c.token,
			"country":      "vn",
			"language":     "vi",
			"types":        "address,place",
			"limit":        "5",
		}).
		SetResult(&out).
		Get("/geocoding/v5/mapbox.places/" + url.PathEscape(query) + ".json")
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}

	if resp.IsError() {
		c.logger.Warn("Geocoding provider error",
			slog.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("geocode provider returned status %d", resp.StatusCode())
	}

	if out.Features == nil {
		out.Features = []Feature{}
	}
	return &out, nil
}
