// Package analysis memoizes LLM classification and extraction results
// and drives the analysis of newly ingested emails.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/mverdon/formatrack/internal/database"
	"github.com/mverdon/formatrack/pkg/models"
)

// Cache memoizes per-email analyses keyed by email id. Entries produced
// by a different model version are invisible to readers but kept on
// disk until InvalidateStale is called.
type Cache struct {
	db           *database.DB
	modelVersion string
}

// NewCache creates an analysis cache bound to the active model version
func NewCache(db *database.DB, modelVersion string) *Cache {
	return &Cache{db: db, modelVersion: modelVersion}
}

// ModelVersion returns the active model version string
func (c *Cache) ModelVersion() string {
	return c.modelVersion
}

// Get returns the raw entry for an email, whatever its model version.
// Returns nil (no error) when absent.
func (c *Cache) Get(ctx context.Context, emailID string) (*models.CacheEntry, error) {
	entry, err := c.db.GetCacheEntry(ctx, emailID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// GetCurrent bulk-loads entries for the given email ids, keeping only
// those produced by the active model version. Stale entries are
// silently treated as misses.
func (c *Cache) GetCurrent(ctx context.Context, emailIDs []string) (map[string]*models.CacheEntry, error) {
	entries, err := c.db.GetCacheEntries(ctx, emailIDs)
	if err != nil {
		return nil, err
	}
	current := make(map[string]*models.CacheEntry)
	for _, entry := range entries {
		if entry.ModelVersion == c.modelVersion {
			current[entry.EmailID] = entry
		}
	}
	return current, nil
}

// GetClassifications returns current-version classifications per email id
func (c *Cache) GetClassifications(ctx context.Context, emailIDs []string) (map[string]models.ClassificationResult, error) {
	current, err := c.GetCurrent(ctx, emailIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.ClassificationResult)
	for id, entry := range current {
		if entry.Classification != nil {
			out[id] = *entry.Classification
		}
	}
	return out, nil
}

// GetExtractions returns current-version extractions per email id
func (c *Cache) GetExtractions(ctx context.Context, emailIDs []string) (map[string]models.ExtractionResult, error) {
	current, err := c.GetCurrent(ctx, emailIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.ExtractionResult)
	for id, entry := range current {
		if entry.Extraction != nil {
			out[id] = *entry.Extraction
		}
	}
	return out, nil
}

// PutClassification upserts only the classification, refreshing the
// entry's model version and timestamp.
func (c *Cache) PutClassification(ctx context.Context, emailID string, result *models.ClassificationResult) error {
	return c.db.UpsertCacheClassification(ctx, emailID, result, c.modelVersion, time.Now())
}

// PutExtraction upserts only the extraction, refreshing the entry's
// model version and timestamp.
func (c *Cache) PutExtraction(ctx context.Context, emailID string, result *models.ExtractionResult) error {
	return c.db.UpsertCacheExtraction(ctx, emailID, result, c.modelVersion, time.Now())
}

// PutBoth replaces the whole entry unconditionally
func (c *Cache) PutBoth(ctx context.Context, emailID string, classification *models.ClassificationResult, extraction *models.ExtractionResult) error {
	return c.db.ReplaceCacheEntry(ctx, &models.CacheEntry{
		EmailID:        emailID,
		Classification: classification,
		Extraction:     extraction,
		ModelVersion:   c.modelVersion,
		CachedAt:       time.Now(),
	})
}

// InvalidateStale deletes every entry from another model version and
// returns the number removed. The only mechanism that reclaims stale
// entries.
func (c *Cache) InvalidateStale(ctx context.Context) (int, error) {
	return c.db.DeleteCacheNotVersion(ctx, c.modelVersion)
}

// Delete removes one entry
func (c *Cache) Delete(ctx context.Context, emailID string) error {
	return c.db.DeleteCacheEntry(ctx, emailID)
}

// Clear removes every entry
func (c *Cache) Clear(ctx context.Context) error {
	return c.db.ClearCache(ctx)
}

// Count returns the number of entries, stale ones included
func (c *Cache) Count(ctx context.Context) (int, error) {
	return c.db.CountCache(ctx)
}
