// Package mail ingests training emails from an IMAP mailbox into the
// local store, where they await analysis and fusion.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/mverdon/formatrack/internal/database"
	"github.com/mverdon/formatrack/pkg/models"
)

// Config for the IMAP fetcher
type Config struct {
	Email       string
	Password    string
	Server      string // host:port
	DialTimeout time.Duration
}

// Fetcher pulls new messages from one IMAP account into the store
type Fetcher struct {
	cfg    Config
	db     *database.DB
	logger *slog.Logger
}

// NewFetcher creates an IMAP fetcher
func NewFetcher(cfg Config, db *database.DB, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "mail", "email", cfg.Email),
	}
}

// FetchStats summarizes one ingestion run
type FetchStats struct {
	Fetched int // messages seen above the last UID
	Stored  int // newly persisted
	Skipped int // already ingested
}

// Fetch connects, pulls every message above the stored last UID,
// persists the new ones and advances the UID watermark.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchStats, error) {
	timeout := f.cfg.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	f.logger.Info("connecting to IMAP server", "server", f.cfg.Server)
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", f.cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(f.cfg.Email, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	mbox, err := imapClient.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}
	if mbox.Messages == 0 {
		return &FetchStats{}, nil
	}

	lastUID, err := f.db.GetLastUID(ctx, f.cfg.Email)
	if err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(lastUID+1, 0) // 0 means * (all)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.UidFetch(seqSet, items, messages)
	}()

	stats := &FetchStats{}
	highest := lastUID
	for msg := range messages {
		if msg.Uid <= lastUID {
			continue
		}
		stats.Fetched++
		if msg.Uid > highest {
			highest = msg.Uid
		}

		stored, err := f.parse(msg, section)
		if err != nil {
			f.logger.Warn("failed to parse message", "uid", msg.Uid, "error", err)
			continue
		}

		err = f.db.CreateMessage(ctx, stored)
		switch {
		case errors.Is(err, database.ErrAlreadyExists):
			stats.Skipped++
		case err != nil:
			return stats, err
		default:
			stats.Stored++
			f.logger.Debug("stored message", "id", stored.ID, "subject", stored.Subject)
		}
	}

	if err := <-done; err != nil {
		return stats, fmt.Errorf("failed to fetch: %w", err)
	}

	if highest > lastUID {
		if err := f.db.SetLastUID(ctx, f.cfg.Email, highest); err != nil {
			return stats, err
		}
	}

	f.logger.Info("fetch complete", "fetched", stats.Fetched, "stored", stats.Stored)
	return stats, nil
}

// parse converts an IMAP message into a SourceMessage
func (f *Fetcher) parse(msg *imap.Message, section *imap.BodySectionName) (*models.SourceMessage, error) {
	out := &models.SourceMessage{}

	if msg.Envelope != nil {
		out.ID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.ReceivedAt = msg.Envelope.Date
		if len(msg.Envelope.InReplyTo) > 0 {
			out.ThreadID = msg.Envelope.InReplyTo
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			out.FromName = from.PersonalName
			out.FromAddr = from.Address()
		}
	}
	if out.ID == "" {
		// Rare: no Message-ID header. Synthesize a stable one.
		out.ID = fmt.Sprintf("%s/%d", f.cfg.Email, msg.Uid)
	}
	if out.ThreadID == "" {
		out.ThreadID = out.ID
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return out, nil
	}
	mr, err := mail.CreateReader(bodyReader)
	if err != nil {
		return out, fmt.Errorf("failed to create mail reader: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.logger.Warn("failed to read part", "error", err)
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(ct, "text/html"):
			out.BodyHTML = string(body)
		case strings.HasPrefix(ct, "text/plain"):
			out.BodyText = string(body)
		}
	}

	return out, nil
}
