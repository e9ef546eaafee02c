// Package weather fetches current conditions from Open-Meteo for display next
// to the map. It plays no part in validating submissions.
package weather

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
)

const DefaultBaseURL = "https://api.open-meteo.com"

// Open-Meteo reports times as local ISO 8601 without seconds; GMT by default.
const timeLayout = "2006-01-02T15:04"

type Conditions struct {
	TemperatureC       float64   `json:"temperature_c"`
	SurfacePressureHPa float64   `json:"surface_pressure_hpa"`
	WindSpeedKmh       float64   `json:"wind_speed_kmh"`
	Time               time.Time `json:"time"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Current(ctx context.Context, lat, lng float64) (Conditions, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude": {strconv.FormatFloat(lng, 'f', 4, 64)},
		"current":   {"temperature_2m,surface_pressure,wind_speed_10m"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+params.Encode(), nil)
	if err != nil {
		return Conditions{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Conditions{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Conditions{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Conditions{}, fmt.Errorf("decode response: %w", err)
	}

	at, err := time.Parse(timeLayout, r.Current.Time)
	if err != nil {
		return Conditions{}, fmt.Errorf("parse time %q: %w", r.Current.Time, err)
	}

	return Conditions{
		TemperatureC:       r.Current.Temperature,
		SurfacePressureHPa: r.Current.SurfacePressure,
		WindSpeedKmh:       r.Current.WindSpeed,
		Time:               at,
	}, nil
}

type response struct {
	Current struct {
		Time            string  `json:"time"`
		Temperature     float64 `json:"temperature_2m"`
		SurfacePressure float64 `json:"surface_pressure"`
		WindSpeed       float64 `json:"wind_speed_10m"`
	} `json:"current"`
}
