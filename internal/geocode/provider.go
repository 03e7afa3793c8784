package geocode

import (
	"context"

	"github.com/mverdon/formatrack/pkg/models"
)

// Result is one provider answer. Nil Coordinates with a nil error means
// the provider definitively found no match for the address.
type Result struct {
	Coordinates      *models.Coordinates
	FormattedAddress string
	Confidence       float64
}

// Provider resolves a free-text address to coordinates. Implementations
// own their rate limiting and timeouts; transport failures surface as
// errors, unresolvable addresses as a nil-coordinate Result.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
	IsConfigured() bool
}
