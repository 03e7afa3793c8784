package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mverdon/formatrack/pkg/models"
)

func coords(lat, lng float64) *models.Coordinates {
	return &models.Coordinates{Lat: lat, Lng: lng}
}

// GoogleMaps is the Google Geocoding API provider
type GoogleMaps struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGoogleMaps creates the Google provider
func NewGoogleMaps(baseURL, apiKey string) *GoogleMaps {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com"
	}
	return &GoogleMaps{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *GoogleMaps) Name() string { return "google" }

func (g *GoogleMaps) IsConfigured() bool { return g.apiKey != "" }

// Geocode resolves an address via the Google Geocoding API
func (g *GoogleMaps) Geocode(ctx context.Context, address string) (*Result, error) {
	if !g.IsConfigured() {
		return nil, fmt.Errorf("google geocoding API key not configured")
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+"/maps/api/geocode/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(httpReq)
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
		Status  string `json:"status"`
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
				LocationType string `json:"location_type"`
			} `json:"geometry"`
		} `json:"results"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{}, nil
	default:
		return nil, fmt.Errorf("geocoding failed: %s %s", payload.Status, payload.ErrorMessage)
	}
	if len(payload.Results) == 0 {
		return &Result{}, nil
	}

	loc := payload.Results[0].Geometry.Location
	confidence := 0.5
	if payload.Results[0].Geometry.LocationType == "ROOFTOP" {
		confidence = 1.0
	}
	return &Result{
		Coordinates:      coords(loc.Lat, loc.Lng),
		FormattedAddress: payload.Results[0].FormattedAddress,
		Confidence:       confidence,
	}, nil
}
