package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mverdon/formatrack/pkg/models"
)

type geocacheRow struct {
	NormalizedAddress string          `db:"normalized_address"`
	Lat               sql.NullFloat64 `db:"lat"`
	Lng               sql.NullFloat64 `db:"lng"`
	Provider          string          `db:"provider"`
	CachedAt          time.Time       `db:"cached_at"`
}

func (r *geocacheRow) decode() *models.GeocacheEntry {
	entry := &models.GeocacheEntry{
		NormalizedAddress: r.NormalizedAddress,
		Provider:          r.Provider,
		CachedAt:          r.CachedAt,
	}
	if r.Lat.Valid && r.Lng.Valid {
		entry.Coordinates = &models.Coordinates{Lat: r.Lat.Float64, Lng: r.Lng.Float64}
	}
	return entry
}

// GetGeocacheEntry returns the cached resolution for a normalized address
func (db *DB) GetGeocacheEntry(ctx context.Context, normalized string) (*models.GeocacheEntry, error) {
	var row geocacheRow
	query := `SELECT * FROM geocache WHERE normalized_address = ?`
	err := db.GetContext(ctx, &row, query, normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geocache entry: %w", err)
	}
	return row.decode(), nil
}

// PutGeocacheEntry upserts a resolution, including failed (nil) ones
func (db *DB) PutGeocacheEntry(ctx context.Context, entry *models.GeocacheEntry) error {
	var lat, lng sql.NullFloat64
	if entry.Coordinates != nil {
		lat = sql.NullFloat64{Float64: entry.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: entry.Coordinates.Lng, Valid: true}
	}
	query := `INSERT OR REPLACE INTO geocache (normalized_address, lat, lng, provider, cached_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, entry.NormalizedAddress, lat, lng, entry.Provider, entry.CachedAt)
	if err != nil {
		return fmt.Errorf("failed to put geocache entry: %w", err)
	}
	return nil
}

// DeleteFailedGeocacheEntries removes only cached failures (null
// coordinates) and returns the number removed.
func (db *DB) DeleteFailedGeocacheEntries(ctx context.Context) (int, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM geocache WHERE lat IS NULL OR lng IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete failed geocache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// ClearGeocache removes every cached resolution
func (db *DB) ClearGeocache(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM geocache`)
	if err != nil {
		return fmt.Errorf("failed to clear geocache: %w", err)
	}
	return nil
}

// GeocacheStats counts total, resolved and failed entries
func (db *DB) GeocacheStats(ctx context.Context) (*models.GeocacheStats, error) {
	var stats models.GeocacheStats
	query := `SELECT COUNT(*), COALESCE(SUM(lat IS NOT NULL AND lng IS NOT NULL), 0) FROM geocache`
	err := db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.WithCoords)
	if err != nil {
		return nil, fmt.Errorf("failed to compute geocache stats: %w", err)
	}
	stats.WithoutCoords = stats.Total - stats.WithCoords
	return &stats, nil
}
