package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// nominatimSpacing is the minimum interval between requests mandated by
// the Nominatim usage policy.
const nominatimSpacing = time.Second

// Nominatim is the free OpenStreetMap geocoder. It enforces the
// one-request-per-second policy itself via a last-call timestamp.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// NewNominatim creates the free provider. userAgent identifies the
// application as the usage policy requires.
func NewNominatim(baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = "formatrack/1.0"
	}
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (n *Nominatim) Name() string { return "nominatim" }

// IsConfigured is always true: no API key needed
func (n *Nominatim) IsConfigured() bool { return true }

// pace blocks until a full spacing interval has passed since the last
// request, or the context is cancelled.
func (n *Nominatim) pace(ctx context.Context) error {
	n.mu.Lock()
	wait := nominatimSpacing - time.Since(n.lastCall)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before sleeping so concurrent callers queue up.
	n.lastCall = time.Now().Add(wait)
	n.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Geocode resolves an address via the Nominatim search endpoint
func (n *Nominatim) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := n.pace(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	httpReq, err := http.NewRequestWithContext(ctx, "GET", n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(httpReq)
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

	var hits []struct {
		Lat         string  `json:"lat"`
		Lon         string  `json:"lon"`
		DisplayName string  `json:"display_name"`
		Importance  float64 `json:"importance"`
	}
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(hits) == 0 {
		return &Result{}, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", hits[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", hits[0].Lon, err)
	}

	return &Result{
		Coordinates:      coords(lat, lng),
		FormattedAddress: hits[0].DisplayName,
		Confidence:       hits[0].Importance,
	}, nil
}
