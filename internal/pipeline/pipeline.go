// Package pipeline drives the end-to-end fusion run: load analyzed
// messages, pull cached analyses, fuse, persist, geocode.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mverdon/formatrack/internal/fusion"
	"github.com/mverdon/formatrack/pkg/models"
)

// State of a fusion run
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateFusing    State = "fusing"
	StateGeocoding State = "geocoding"
	StateDone      State = "done"
	StateError     State = "error"
)

// Progress is the cumulative snapshot emitted at every checkpoint
type Progress struct {
	State         State        `json:"state"`
	Message       string       `json:"message"`
	Stats         fusion.Stats `json:"stats"`
	Geocoded      int          `json:"geocoded"`
	GeocodeFailed int          `json:"geocodeFailed"`
	Current       int          `json:"current"` // geocoding position
	Total         int          `json:"total"`   // geocoding candidates
	ErrorMessage  string       `json:"errorMessage,omitempty"`
}

// ProgressFunc receives snapshots synchronously; the last call always
// reflects the latest state.
type ProgressFunc func(Progress)

// Store is the persistence surface the pipeline needs
type Store interface {
	ListAnalyzedMessages(ctx context.Context) ([]*models.SourceMessage, error)
	ListFormations(ctx context.Context) ([]*models.Formation, error)
	PutFormation(ctx context.Context, f *models.Formation) error
}

// AnalysisCache yields current-model-version analyses per email id
type AnalysisCache interface {
	GetCurrent(ctx context.Context, emailIDs []string) (map[string]*models.CacheEntry, error)
}

// Geocoder resolves one address, consulting its own cache
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*models.Coordinates, error)
}

// Runner executes fusion passes. Collaborators are injected so tests
// can substitute in-memory fakes.
type Runner struct {
	store      Store
	cache      AnalysisCache
	geocoder   Geocoder
	hook       fusion.LocationHook
	logger     *slog.Logger
	onProgress ProgressFunc
}

// New wires a runner. geocoder may be nil; onProgress may be nil.
func New(store Store, cache AnalysisCache, geocoder Geocoder, hook fusion.LocationHook, logger *slog.Logger, onProgress ProgressFunc) *Runner {
	return &Runner{
		store:      store,
		cache:      cache,
		geocoder:   geocoder,
		hook:       hook,
		logger:     logger.With("component", "pipeline"),
		onProgress: onProgress,
	}
}

func (r *Runner) report(p Progress) {
	if r.onProgress != nil {
		r.onProgress(p)
	}
}

func (r *Runner) fail(p Progress, err error) (*Progress, error) {
	p.State = StateError
	p.ErrorMessage = err.Error()
	p.Message = "run failed"
	r.report(p)
	return &p, err
}

// Run executes one fusion pass. geocode controls the optional final
// phase. Persistence failures abort the run; an already-persisted
// prefix is harmless because re-running fusion is idempotent.
// Cancellation is cooperative via ctx, checked between records, and
// preserves all work committed so far.
func (r *Runner) Run(ctx context.Context, geocode bool) (*Progress, error) {
	p := Progress{State: StateLoading, Message: "loading analyzed messages"}
	r.report(p)

	msgs, err := r.store.ListAnalyzedMessages(ctx)
	if err != nil {
		return r.fail(p, fmt.Errorf("failed to load messages: %w", err))
	}
	if len(msgs) == 0 {
		p.State = StateDone
		p.Message = "no analyzed messages"
		r.report(p)
		return &p, nil
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	entries, err := r.cache.GetCurrent(ctx, ids)
	if err != nil {
		return r.fail(p, fmt.Errorf("failed to load cached analyses: %w", err))
	}

	// Messages without a current-version analysis are excluded from
	// this pass, not re-analyzed here. Non-mergeable categories are
	// counted up front so the ignored counter shows early.
	var inputs []fusion.Input
	preIgnored := 0
	for _, msg := range msgs {
		entry, ok := entries[msg.ID]
		if !ok || entry.Classification == nil {
			continue
		}
		if !entry.Classification.Effective().Mergeable() {
			preIgnored++
			continue
		}
		in := fusion.Input{Message: msg, Classification: *entry.Classification}
		if entry.Extraction != nil {
			in.Extraction = *entry.Extraction
		}
		inputs = append(inputs, in)
	}

	p.Message = fmt.Sprintf("loaded %d analyses (%d ignored)", len(inputs), preIgnored)
	r.report(p)

	existing, err := r.store.ListFormations(ctx)
	if err != nil {
		return r.fail(p, fmt.Errorf("failed to load formations: %w", err))
	}

	p.State = StateFusing
	p.Message = fmt.Sprintf("fusing %d emails into %d existing formations", len(inputs), len(existing))
	r.report(p)

	result := fusion.Fuse(inputs, existing, r.hook)
	p.Stats = result.Stats
	p.Stats.Total += preIgnored
	p.Stats.Ignored += preIgnored

	for _, f := range result.Created {
		if err := r.store.PutFormation(ctx, f); err != nil {
			return r.fail(p, fmt.Errorf("failed to persist created formation %s: %w", f.ID, err))
		}
	}
	for _, f := range result.Updated {
		if err := r.store.PutFormation(ctx, f); err != nil {
			return r.fail(p, fmt.Errorf("failed to persist updated formation %s: %w", f.ID, err))
		}
	}

	p.Message = fmt.Sprintf("persisted %d created, %d updated", p.Stats.Created, p.Stats.Updated)
	r.report(p)

	if geocode && r.geocoder != nil {
		if err := r.geocodePass(ctx, &p, result); err != nil {
			return r.fail(p, err)
		}
	}

	p.State = StateDone
	p.Message = fmt.Sprintf("done: %d created, %d updated, %d ignored, %d geocoded",
		p.Stats.Created, p.Stats.Updated, p.Stats.Ignored, p.Geocoded)
	r.report(p)
	return &p, nil
}

// geocodePass resolves coordinates for records touched this pass that
// have an address but no coordinates. Each success is persisted
// immediately, so an interrupted pass loses at most one update. One
// record's failure never aborts the loop.
func (r *Runner) geocodePass(ctx context.Context, p *Progress, result *fusion.Result) error {
	var candidates []*models.Formation
	for _, f := range append(append([]*models.Formation{}, result.Created...), result.Updated...) {
		if f.Status == models.StatusCancelled || fusion.IsVirtual(f) {
			continue
		}
		if f.Location.Address == "" || f.Location.Coordinates != nil {
			continue
		}
		candidates = append(candidates, f)
	}

	p.State = StateGeocoding
	p.Total = len(candidates)
	p.Message = fmt.Sprintf("geocoding %d formations", len(candidates))
	r.report(*p)

	for i, f := range candidates {
		if err := ctx.Err(); err != nil {
			// Stop requested: keep everything committed so far.
			return err
		}
		coords, err := r.geocoder.Resolve(ctx, f.Location.Address)
		p.Current = i + 1
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			r.logger.Warn("geocoding failed", "formation", f.ID, "error", err)
			p.GeocodeFailed++
			p.Message = fmt.Sprintf("geocoding failed for %s", f.ExtendedCode)
			r.report(*p)
			continue
		}
		if coords == nil {
			p.GeocodeFailed++
			p.Message = fmt.Sprintf("no coordinates for %s", f.ExtendedCode)
			r.report(*p)
			continue
		}

		f.Location.Coordinates = coords
		if err := r.store.PutFormation(ctx, f); err != nil {
			return fmt.Errorf("failed to persist geocoded formation %s: %w", f.ID, err)
		}
		p.Geocoded++
		p.Message = fmt.Sprintf("geocoded %s", f.ExtendedCode)
		r.report(*p)
	}
	return nil
}
