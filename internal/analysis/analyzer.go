package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mverdon/formatrack/internal/database"
	"github.com/mverdon/formatrack/internal/llm"
	"github.com/mverdon/formatrack/internal/parser"
	"github.com/mverdon/formatrack/pkg/models"
)

// AnalyzeStats summarizes one analysis run
type AnalyzeStats struct {
	Total    int // unanalyzed messages considered
	Analyzed int // messages classified (and extracted when relevant)
	Cached   int // satisfied from a current-version cache entry
	Failed   int // per-message LLM failures, run continues
}

// Analyzer classifies and extracts unanalyzed messages through the LLM,
// writing results to the cache and flipping the analyzed flag.
type Analyzer struct {
	db     *database.DB
	cache  *Cache
	client llm.Client
	html   *parser.HTMLParser
	logger *slog.Logger
}

// NewAnalyzer wires an analyzer
func NewAnalyzer(db *database.DB, cache *Cache, client llm.Client, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		db:     db,
		cache:  cache,
		client: client,
		html:   parser.NewHTMLParser(),
		logger: logger.With("component", "analyzer"),
	}
}

// Run analyzes every unanalyzed message. LLM failures on one message
// are logged and counted, not fatal; cache write failures are logged
// and the result is simply not memoized.
func (a *Analyzer) Run(ctx context.Context) (*AnalyzeStats, error) {
	msgs, err := a.db.ListUnanalyzedMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	stats := &AnalyzeStats{Total: len(msgs)}
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		cached, err := a.analyzeOne(ctx, msg)
		if err != nil {
			a.logger.Warn("analysis failed", "email", msg.ID, "error", err)
			stats.Failed++
			continue
		}
		if cached {
			stats.Cached++
		}
		stats.Analyzed++
	}
	return stats, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, msg *models.SourceMessage) (cached bool, err error) {
	entry, err := a.cache.Get(ctx, msg.ID)
	if err != nil {
		a.logger.Warn("cache read failed, re-analyzing", "email", msg.ID, "error", err)
		entry = nil
	}
	if entry != nil && entry.ModelVersion == a.cache.ModelVersion() && entry.Classification != nil {
		if err := a.db.MarkMessageAnalyzed(ctx, msg.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	body, err := a.body(msg)
	if err != nil {
		return false, err
	}

	classification, err := a.client.Classify(ctx, msg, body)
	if err != nil {
		return false, err
	}

	var extraction *models.ExtractionResult
	if classification.Effective().Mergeable() {
		extraction, err = a.client.Extract(ctx, msg, body)
		if err != nil {
			return false, err
		}
	}

	if err := a.cache.PutBoth(ctx, msg.ID, classification, extraction); err != nil {
		// Best effort: an unmemoized analysis only costs a re-run.
		a.logger.Warn("cache write failed", "email", msg.ID, "error", err)
	}

	if err := a.db.MarkMessageAnalyzed(ctx, msg.ID); err != nil {
		return false, err
	}

	a.logger.Debug("analyzed message",
		"email", msg.ID,
		"category", classification.Category,
		"confidence", classification.Confidence)
	return false, nil
}

func (a *Analyzer) body(msg *models.SourceMessage) (string, error) {
	if msg.BodyText != "" {
		return msg.BodyText, nil
	}
	if msg.BodyHTML == "" {
		return "", nil
	}
	text, err := a.html.Parse(msg.BodyHTML)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML body: %w", err)
	}
	return text, nil
}
