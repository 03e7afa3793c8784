package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mverdon/formatrack/pkg/models"
)

// CreateMessage stores a new source message (ignores if already ingested)
func (db *DB) CreateMessage(ctx context.Context, msg *models.SourceMessage) error {
	query := `
		INSERT OR IGNORE INTO messages (id, thread_id, from_addr, from_name, subject, body_text, body_html, received_at, analyzed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		msg.ID,
		msg.ThreadID,
		msg.FromAddr,
		msg.FromName,
		msg.Subject,
		msg.BodyText,
		msg.BodyHTML,
		msg.ReceivedAt,
		msg.Analyzed,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Check if a row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	msg.CreatedAt = now
	return nil
}

// GetMessage returns a message by its id
func (db *DB) GetMessage(ctx context.Context, id string) (*models.SourceMessage, error) {
	var msg models.SourceMessage
	query := `SELECT * FROM messages WHERE id = ?`
	err := db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// ListAnalyzedMessages returns every message flagged as analyzed
func (db *DB) ListAnalyzedMessages(ctx context.Context) ([]*models.SourceMessage, error) {
	var msgs []*models.SourceMessage
	query := `SELECT * FROM messages WHERE analyzed = true ORDER BY received_at ASC`
	err := db.SelectContext(ctx, &msgs, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyzed messages: %w", err)
	}
	return msgs, nil
}

// ListUnanalyzedMessages returns messages still awaiting analysis
func (db *DB) ListUnanalyzedMessages(ctx context.Context) ([]*models.SourceMessage, error) {
	var msgs []*models.SourceMessage
	query := `SELECT * FROM messages WHERE analyzed = false ORDER BY received_at ASC`
	err := db.SelectContext(ctx, &msgs, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanalyzed messages: %w", err)
	}
	return msgs, nil
}

// MarkMessageAnalyzed flips the analyzed flag
func (db *DB) MarkMessageAnalyzed(ctx context.Context, id string) error {
	query := `UPDATE messages SET analyzed = true WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark message analyzed: %w", err)
	}
	return nil
}

// CountMessages returns total and analyzed message counts
func (db *DB) CountMessages(ctx context.Context) (total, analyzed int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(analyzed), 0) FROM messages`
	err = db.QueryRowContext(ctx, query).Scan(&total, &analyzed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return total, analyzed, nil
}

// GetLastUID returns the last processed IMAP UID for an account
func (db *DB) GetLastUID(ctx context.Context, account string) (uint32, error) {
	var uid uint32
	query := `SELECT last_uid FROM imap_state WHERE account = ?`
	err := db.GetContext(ctx, &uid, query, account)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last uid: %w", err)
	}
	return uid, nil
}

// SetLastUID updates the last processed IMAP UID for an account
func (db *DB) SetLastUID(ctx context.Context, account string, uid uint32) error {
	query := `
		INSERT INTO imap_state (account, last_uid, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET last_uid = excluded.last_uid, updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query, account, uid, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last uid: %w", err)
	}
	return nil
}
