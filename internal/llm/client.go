// Package llm talks to the language model that classifies training
// emails and extracts structured session data from them.
package llm

import (
	"context"

	"github.com/mverdon/formatrack/pkg/models"
)

// Client classifies and extracts one email at a time
type Client interface {
	// ModelVersion tags produced analyses for cache invalidation.
	// Compared exactly: any mismatch is staleness.
	ModelVersion() string

	// Classify assigns a category to an email
	Classify(ctx context.Context, msg *models.SourceMessage, body string) (*models.ClassificationResult, error)

	// Extract reads formation fields out of an email
	Extract(ctx context.Context, msg *models.SourceMessage, body string) (*models.ExtractionResult, error)
}
