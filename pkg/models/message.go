package models

import "time"

// SourceMessage represents one ingested email
type SourceMessage struct {
	ID         string    `db:"id" json:"id"`                  // Message-ID header, stable and unique
	ThreadID   string    `db:"thread_id" json:"threadId"`     // References/In-Reply-To thread root
	FromAddr   string    `db:"from_addr" json:"fromAddr"`     // Sender email
	FromName   string    `db:"from_name" json:"fromName"`     // Sender display name
	Subject    string    `db:"subject" json:"subject"`        // Email subject
	BodyText   string    `db:"body_text" json:"bodyText"`     // Plain-text body
	BodyHTML   string    `db:"body_html" json:"bodyHtml"`     // Original HTML body, if any
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"` // When the email was received
	Analyzed   bool      `db:"analyzed" json:"analyzed"`      // Classification+extraction completed
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
