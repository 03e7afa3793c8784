// Package fusion merges independently analyzed email fragments into
// canonical formation records. The engine is a pure function over its
// inputs: persistence and progress reporting live in the pipeline.
package fusion

import (
	"sort"
	"time"

	"github.com/mverdon/formatrack/internal/identity"
	"github.com/mverdon/formatrack/pkg/models"
)

// Input is one analyzed email ready to merge
type Input struct {
	Message        *models.SourceMessage
	Classification models.ClassificationResult
	Extraction     models.ExtractionResult
}

// Stats counters accumulated over one fusion pass
type Stats struct {
	Total         int `json:"total"`         // inputs received
	Ignored       int `json:"ignored"`       // non-mergeable or keyless inputs
	Created       int `json:"created"`       // groups with no prior record
	Updated       int `json:"updated"`       // groups merged onto a prior record
	Cancellations int `json:"cancellations"` // records newly cancelled this pass
	Fused         int `json:"fused"`         // emails joining an already-represented key
}

// Result is the partition produced by one fusion pass
type Result struct {
	Created []*models.Formation
	Updated []*models.Formation
	Ignored []*models.SourceMessage
	Stats   Stats
}

// LocationHook post-processes each merged record, typically to force a
// synthetic location for virtual sessions. May be nil.
type LocationHook func(*models.Formation)

// Fuse groups inputs by natural key and merges each group against the
// matching existing record, if any. Total over any input list:
// malformed inputs land in Ignored, never panic. Existing records are
// never mutated; updated records are clones.
func Fuse(inputs []Input, existing []*models.Formation, hook LocationHook) *Result {
	result := &Result{Stats: Stats{Total: len(inputs)}}

	byKey := make(map[string]*models.Formation, len(existing))
	for _, f := range existing {
		byKey[identity.NaturalKey(f.ExtendedCode, f.StartDate)] = f
	}

	// Group mergeable inputs by key, keeping first-seen key order so
	// output order is deterministic.
	groups := make(map[string][]Input)
	var keys []string
	for _, in := range inputs {
		code := in.Extraction.Formation.ExtendedCode
		date := in.Extraction.Formation.StartDate
		if !in.Classification.Effective().Mergeable() || !identity.Complete(code, date) {
			result.Ignored = append(result.Ignored, in.Message)
			result.Stats.Ignored++
			continue
		}
		key := identity.NaturalKey(code, date)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], in)
	}

	now := time.Now()
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Message.ReceivedAt.Before(group[j].Message.ReceivedAt)
		})

		prior := byKey[key]
		var record *models.Formation
		if prior != nil {
			record = prior.Clone()
		} else {
			first := group[0].Extraction.Formation
			record = &models.Formation{
				ID:        identity.DeriveID(first.ExtendedCode, first.StartDate),
				Status:    models.StatusConfirmed,
				CreatedAt: now,
			}
		}
		wasCancelled := record.Status == models.StatusCancelled

		for _, in := range group {
			record.EmailIDs = appendUnique(record.EmailIDs, in.Message.ID)
			merge(record, &in.Extraction.Formation)
			if in.Classification.Effective() == models.CategoryCancellation {
				// Monotonic: never reverted by later confirmations.
				record.Status = models.StatusCancelled
			}
		}

		if hook != nil {
			hook(record)
		}
		record.UpdatedAt = now

		if prior == nil {
			result.Created = append(result.Created, record)
			result.Stats.Created++
		} else {
			result.Updated = append(result.Updated, record)
			result.Stats.Updated++
		}
		if record.Status == models.StatusCancelled && !wasCancelled {
			result.Stats.Cancellations++
		}
		if len(group) > 1 {
			result.Stats.Fused += len(group) - 1
		}
	}

	return result
}
