package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Mapbox is the Mapbox Geocoding API provider
type Mapbox struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewMapbox creates the Mapbox provider
func NewMapbox(baseURL, accessToken string) *Mapbox {
	if baseURL == "" {
		baseURL = "https://api.mapbox.com"
	}
	return &Mapbox{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (m *Mapbox) Name() string { return "mapbox" }

func (m *Mapbox) IsConfigured() bool { return m.accessToken != "" }

// Geocode resolves an address via the Mapbox forward-geocoding endpoint
func (m *Mapbox) Geocode(ctx context.Context, address string) (*Result, error) {
	if !m.IsConfigured() {
		return nil, fmt.Errorf("mapbox access token not configured")
	}

	params := url.Values{}
	params.Set("access_token", m.accessToken)
	params.Set("limit", "1")

	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		m.baseURL, url.PathEscape(address), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Features []struct {
			Center    []float64 `json:"center"` // [lng, lat]
			PlaceName string    `json:"place_name"`
			Relevance float64   `json:"relevance"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Center) < 2 {
		return &Result{}, nil
	}

	f := payload.Features[0]
	return &Result{
		Coordinates:      coords(f.Center[1], f.Center[0]),
		FormattedAddress: f.PlaceName,
		Confidence:       f.Relevance,
	}, nil
}
