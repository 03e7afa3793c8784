package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/formatrack.db"`

	// Mailbox
	IMAPEmail       string        `env:"IMAP_EMAIL"`
	IMAPPassword    string        `env:"IMAP_PASSWORD"`
	IMAPServer      string        `env:"IMAP_SERVER"` // host:port, e.g. imap.gmail.com:993
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Language model
	LLMBaseURL string `env:"LLM_BASE_URL"` // OpenAI-compatible endpoint
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	// Geocoding
	GeocodeProvider    string `env:"GEOCODE_PROVIDER" envDefault:"nominatim"` // nominatim, google or mapbox
	NominatimUserAgent string `env:"NOMINATIM_USER_AGENT" envDefault:"formatrack/1.0"`
	GoogleMapsAPIKey   string `env:"GOOGLE_MAPS_API_KEY"`
	MapboxAccessToken  string `env:"MAPBOX_ACCESS_TOKEN"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// IMAPConfigured returns true if a mailbox is configured
func (c *Config) IMAPConfigured() bool {
	return c.IMAPEmail != "" && c.IMAPPassword != "" && c.IMAPServer != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Key-based providers must be usable before any network call
	switch cfg.GeocodeProvider {
	case "nominatim":
	case "google":
		if cfg.GoogleMapsAPIKey == "" {
			return nil, fmt.Errorf("GEOCODE_PROVIDER=google requires GOOGLE_MAPS_API_KEY")
		}
	case "mapbox":
		if cfg.MapboxAccessToken == "" {
			return nil, fmt.Errorf("GEOCODE_PROVIDER=mapbox requires MAPBOX_ACCESS_TOKEN")
		}
	default:
		return nil, fmt.Errorf("unknown GEOCODE_PROVIDER %q", cfg.GeocodeProvider)
	}

	return cfg, nil
}
