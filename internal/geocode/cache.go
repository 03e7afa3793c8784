package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mverdon/formatrack/internal/database"
	"github.com/mverdon/formatrack/pkg/models"
)

// Cache memoizes address resolutions keyed by normalized address. A
// cached nil result is a known-unresolvable address and is returned
// without touching the provider until ClearFailed discards it.
type Cache struct {
	db       *database.DB
	provider Provider
	logger   *slog.Logger
}

// NewCache wires a geocoding cache to its provider
func NewCache(db *database.DB, provider Provider, logger *slog.Logger) *Cache {
	return &Cache{
		db:       db,
		provider: provider,
		logger:   logger.With("component", "geocache"),
	}
}

// Resolve returns coordinates for an address, consulting the cache
// first. Cache hits, including cached failures, never reach the
// provider. A definitive provider miss is cached as a failure; a
// transport error is returned as nil without caching, so the address
// stays retryable.
func (c *Cache) Resolve(ctx context.Context, rawAddress string) (*models.Coordinates, error) {
	normalized := Normalize(rawAddress)
	if normalized == "" {
		return nil, nil
	}

	entry, err := c.db.GetGeocacheEntry(ctx, normalized)
	if err == nil {
		return entry.Coordinates, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if c.provider == nil || !c.provider.IsConfigured() {
		return nil, fmt.Errorf("geocoding provider not configured")
	}

	result, err := c.provider.Geocode(ctx, collapseWhitespace(rawAddress))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.Warn("provider call failed", "address", rawAddress, "error", err)
		return nil, nil
	}

	if putErr := c.db.PutGeocacheEntry(ctx, &models.GeocacheEntry{
		NormalizedAddress: normalized,
		Coordinates:       result.Coordinates,
		Provider:          c.provider.Name(),
		CachedAt:          time.Now(),
	}); putErr != nil {
		// Best effort: an unmemoized hit only costs a repeat lookup.
		c.logger.Warn("geocache write failed", "address", normalized, "error", putErr)
	}

	return result.Coordinates, nil
}

// ResolveBatch resolves addresses one at a time, in order, calling
// onProgress after each. Sequential on purpose: the free provider's
// rate limit makes parallel lookups pointless.
func (c *Cache) ResolveBatch(ctx context.Context, addresses []string, onProgress func(current, total int)) (map[string]*models.Coordinates, error) {
	results := make(map[string]*models.Coordinates, len(addresses))
	for i, address := range addresses {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		coords, err := c.Resolve(ctx, address)
		if err != nil {
			return results, err
		}
		results[address] = coords
		if onProgress != nil {
			onProgress(i+1, len(addresses))
		}
	}
	return results, nil
}

// ClearFailed deletes only cached failures, enabling retry without
// discarding successful lookups. Returns the number removed.
func (c *Cache) ClearFailed(ctx context.Context) (int, error) {
	return c.db.DeleteFailedGeocacheEntries(ctx)
}

// ClearAll removes every cached resolution
func (c *Cache) ClearAll(ctx context.Context) error {
	return c.db.ClearGeocache(ctx)
}

// Stats counts total, resolved and failed entries
func (c *Cache) Stats(ctx context.Context) (*models.GeocacheStats, error) {
	return c.db.GeocacheStats(ctx)
}
