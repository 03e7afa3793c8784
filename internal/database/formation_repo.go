package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mverdon/formatrack/internal/identity"
	"github.com/mverdon/formatrack/pkg/models"
)

// formationRow mirrors the formations table: lookup columns plus the
// full record as a JSON payload.
type formationRow struct {
	ID           string    `db:"id"`
	NaturalKey   string    `db:"natural_key"`
	ExtendedCode string    `db:"extended_code"`
	StartDate    string    `db:"start_date"`
	Status       string    `db:"status"`
	Data         string    `db:"data"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *formationRow) decode() (*models.Formation, error) {
	var f models.Formation
	if err := json.Unmarshal([]byte(r.Data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode formation %s: %w", r.ID, err)
	}
	return &f, nil
}

// PutFormation upserts a formation keyed by its derived id
func (db *DB) PutFormation(ctx context.Context, f *models.Formation) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode formation: %w", err)
	}
	query := `
		INSERT INTO formations (id, natural_key, extended_code, start_date, status, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			natural_key = excluded.natural_key,
			extended_code = excluded.extended_code,
			start_date = excluded.start_date,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	_, err = db.ExecContext(ctx, query,
		f.ID,
		identity.NaturalKey(f.ExtendedCode, f.StartDate),
		f.ExtendedCode,
		f.StartDate,
		string(f.Status),
		string(data),
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put formation: %w", err)
	}
	return nil
}

// GetFormation returns a formation by its derived id
func (db *DB) GetFormation(ctx context.Context, id string) (*models.Formation, error) {
	var row formationRow
	query := `SELECT * FROM formations WHERE id = ?`
	err := db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get formation: %w", err)
	}
	return row.decode()
}

// GetFormationByKey returns a formation by its natural key
func (db *DB) GetFormationByKey(ctx context.Context, naturalKey string) (*models.Formation, error) {
	var row formationRow
	query := `SELECT * FROM formations WHERE natural_key = ?`
	err := db.GetContext(ctx, &row, query, naturalKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get formation by key: %w", err)
	}
	return row.decode()
}

// ListFormations returns every stored formation, oldest start date first
func (db *DB) ListFormations(ctx context.Context) ([]*models.Formation, error) {
	var rows []formationRow
	query := `SELECT * FROM formations ORDER BY start_date ASC`
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list formations: %w", err)
	}
	formations := make([]*models.Formation, 0, len(rows))
	for i := range rows {
		f, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		formations = append(formations, f)
	}
	return formations, nil
}

// DeleteFormation removes a formation by id
func (db *DB) DeleteFormation(ctx context.Context, id string) error {
	query := `DELETE FROM formations WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete formation: %w", err)
	}
	return nil
}

// CountFormations returns total and cancelled formation counts
func (db *DB) CountFormations(ctx context.Context) (total, cancelled int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(status = 'cancelled'), 0) FROM formations`
	err = db.QueryRowContext(ctx, query).Scan(&total, &cancelled)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count formations: %w", err)
	}
	return total, cancelled, nil
}
