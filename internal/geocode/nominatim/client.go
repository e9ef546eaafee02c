// Package nominatim is a reverse geocoding client for the OpenStreetMap
// Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vbonduro/icewatch/internal/geocode"
	"github.com/vbonduro/icewatch/internal/observability"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements geocode.Reverser. The public instance allows one request
// per second and requires an identifying User-Agent.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
}

func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		metrics:    metrics,
	}
}

func (c *Client) Reverse(ctx context.Context, lat, lng float64) (geocode.Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geocode.Place{}, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', 6, 64)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return geocode.Place{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return geocode.Place{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return geocode.Place{}, fmt.Errorf("decode response: %w", err)
	}
	// Open sea and unmapped points come back as {"error": "Unable to geocode"}.
	if r.Error != "" {
		return geocode.Place{}, nil
	}

	return geocode.Place{
		Category:    r.Category,
		Type:        r.Type,
		DisplayName: r.DisplayName,
	}, nil
}

type response struct {
	Category    string `json:"category"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}
