package models

import (
	"fmt"
	"time"
)

// Category of a classified email. Closed set: anything else is rejected
// at the LLM-response parsing boundary.
type Category string

const (
	CategoryInterConfirmation Category = "inter_confirmation"
	CategoryIntraConfirmation Category = "intra_confirmation"
	CategoryCancellation      Category = "cancellation"
	CategoryPurchaseOrder     Category = "purchase_order"
	CategoryBillingInfo       Category = "billing_info"
	CategoryReminder          Category = "reminder"
	CategoryIntraRequest      Category = "intra_request"
	CategoryOther             Category = "other"
)

// ParseCategory validates a raw category string
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryInterConfirmation, CategoryIntraConfirmation,
		CategoryCancellation, CategoryPurchaseOrder, CategoryBillingInfo,
		CategoryReminder, CategoryIntraRequest, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Mergeable reports whether emails of this category carry facts worth
// merging into a formation record.
func (c Category) Mergeable() bool {
	switch c {
	case CategoryIntraRequest, CategoryReminder, CategoryOther:
		return false
	}
	return true
}

// MinConfidence is the classification confidence below which a result
// is treated as "other".
const MinConfidence = 0.7

// ClassificationResult is the LLM's category verdict for one email
type ClassificationResult struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"` // in [0,1]
	Reason     string   `json:"reason,omitempty"`
}

// Effective returns the category to act on: low-confidence verdicts
// degrade to CategoryOther.
func (c ClassificationResult) Effective() Category {
	if c.Confidence < MinConfidence {
		return CategoryOther
	}
	return c.Category
}

// ExtractionResult is the LLM's structured read of one email: a partial
// Formation (any subset of fields may be absent) plus bookkeeping.
type ExtractionResult struct {
	Formation       Formation `json:"formation"`
	FieldsExtracted []string  `json:"fieldsExtracted,omitempty"`
	FieldsMissing   []string  `json:"fieldsMissing,omitempty"`
	Warnings        []string  `json:"warnings,omitempty"`
}

// CacheEntry is one memoized analysis, valid only while ModelVersion
// matches the active model version.
type CacheEntry struct {
	EmailID        string                `json:"emailId"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Extraction     *ExtractionResult     `json:"extraction,omitempty"`
	ModelVersion   string                `json:"modelVersion"`
	CachedAt       time.Time             `json:"cachedAt"`
}
