package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mverdon/formatrack/pkg/models"
)

type cacheRow struct {
	EmailID        string         `db:"email_id"`
	Classification sql.NullString `db:"classification"`
	Extraction     sql.NullString `db:"extraction"`
	ModelVersion   string         `db:"model_version"`
	CachedAt       time.Time      `db:"cached_at"`
}

func (r *cacheRow) decode() (*models.CacheEntry, error) {
	entry := &models.CacheEntry{
		EmailID:      r.EmailID,
		ModelVersion: r.ModelVersion,
		CachedAt:     r.CachedAt,
	}
	if r.Classification.Valid {
		var c models.ClassificationResult
		if err := json.Unmarshal([]byte(r.Classification.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode cached classification for %s: %w", r.EmailID, err)
		}
		entry.Classification = &c
	}
	if r.Extraction.Valid {
		var e models.ExtractionResult
		if err := json.Unmarshal([]byte(r.Extraction.String), &e); err != nil {
			return nil, fmt.Errorf("failed to decode cached extraction for %s: %w", r.EmailID, err)
		}
		entry.Extraction = &e
	}
	return entry, nil
}

func encodeNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode cache payload: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// GetCacheEntry returns the cached analysis for an email, regardless of
// model version. Version filtering is the analysis cache's concern.
func (db *DB) GetCacheEntry(ctx context.Context, emailID string) (*models.CacheEntry, error) {
	var row cacheRow
	query := `SELECT * FROM analysis_cache WHERE email_id = ?`
	err := db.GetContext(ctx, &row, query, emailID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return row.decode()
}

// GetCacheEntries bulk-loads cache entries for a set of email ids
func (db *DB) GetCacheEntries(ctx context.Context, emailIDs []string) ([]*models.CacheEntry, error) {
	if len(emailIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM analysis_cache WHERE email_id IN (?)`, emailIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache query: %w", err)
	}
	var rows []cacheRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get cache entries: %w", err)
	}
	entries := make([]*models.CacheEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReplaceCacheEntry overwrites the full row for an email id
func (db *DB) ReplaceCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	classification, err := encodeNullable(orNil(entry.Classification))
	if err != nil {
		return err
	}
	extraction, err := encodeNullable(orNil(entry.Extraction))
	if err != nil {
		return err
	}
	query := `INSERT OR REPLACE INTO analysis_cache (email_id, classification, extraction, model_version, cached_at) VALUES (?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query, entry.EmailID, classification, extraction, entry.ModelVersion, entry.CachedAt)
	if err != nil {
		return fmt.Errorf("failed to replace cache entry: %w", err)
	}
	return nil
}

// UpsertCacheClassification writes only the classification column,
// refreshing model version and timestamp, creating the row if absent.
func (db *DB) UpsertCacheClassification(ctx context.Context, emailID string, c *models.ClassificationResult, modelVersion string, cachedAt time.Time) error {
	payload, err := encodeNullable(orNil(c))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO analysis_cache (email_id, classification, model_version, cached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email_id) DO UPDATE SET classification = excluded.classification, model_version = excluded.model_version, cached_at = excluded.cached_at
	`
	_, err = db.ExecContext(ctx, query, emailID, payload, modelVersion, cachedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cached classification: %w", err)
	}
	return nil
}

// UpsertCacheExtraction writes only the extraction column, refreshing
// model version and timestamp, creating the row if absent.
func (db *DB) UpsertCacheExtraction(ctx context.Context, emailID string, e *models.ExtractionResult, modelVersion string, cachedAt time.Time) error {
	payload, err := encodeNullable(orNil(e))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO analysis_cache (email_id, extraction, model_version, cached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email_id) DO UPDATE SET extraction = excluded.extraction, model_version = excluded.model_version, cached_at = excluded.cached_at
	`
	_, err = db.ExecContext(ctx, query, emailID, payload, modelVersion, cachedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cached extraction: %w", err)
	}
	return nil
}

// DeleteCacheEntry removes one cached analysis
func (db *DB) DeleteCacheEntry(ctx context.Context, emailID string) error {
	query := `DELETE FROM analysis_cache WHERE email_id = ?`
	_, err := db.ExecContext(ctx, query, emailID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteCacheNotVersion deletes every entry whose model version differs
// from the given one and returns the number removed.
func (db *DB) DeleteCacheNotVersion(ctx context.Context, modelVersion string) (int, error) {
	query := `DELETE FROM analysis_cache WHERE model_version != ?`
	result, err := db.ExecContext(ctx, query, modelVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale cache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// ClearCache removes every cached analysis
func (db *DB) ClearCache(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM analysis_cache`)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// CountCache returns the number of cached analyses
func (db *DB) CountCache(ctx context.Context) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM analysis_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// orNil converts a typed nil pointer into an untyped nil so
// encodeNullable can detect absence.
func orNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}
