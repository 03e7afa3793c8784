package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mverdon/formatrack/internal/database"
	"github.com/mverdon/formatrack/pkg/models"
)

// fakeProvider counts calls and replies from a canned table
type fakeProvider struct {
	calls   int
	results map[string]*models.Coordinates
	err     error
}

func (f *fakeProvider) Name() string       { return "fake" }
func (f *fakeProvider) IsConfigured() bool { return true }

func (f *fakeProvider) Geocode(_ context.Context, address string) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Coordinates: f.results[address]}, nil
}

func newTestCache(t *testing.T, provider Provider) *Cache {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewCache(db, provider, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolve_CachesAcrossVariants(t *testing.T) {
	provider := &fakeProvider{results: map[string]*models.Coordinates{
		"1, Parvis de La Défense; 92044 PARIS LA DEFENSE": {Lat: 48.891, Lng: 2.238},
	}}
	cache := newTestCache(t, provider)
	ctx := context.Background()

	coords, err := cache.Resolve(ctx, "1, Parvis de La Défense;  92044 PARIS LA DEFENSE")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if coords == nil || coords.Lat != 48.891 {
		t.Fatalf("coords = %+v", coords)
	}

	// Same address, different case/punctuation: must hit the cache.
	coords2, err := cache.Resolve(ctx, "1 PARVIS DE LA DEFENSE 92044 Paris la Défense")
	if err != nil {
		t.Fatalf("Resolve variant: %v", err)
	}
	if coords2 == nil || *coords2 != *coords {
		t.Errorf("variant returned %+v, want cached %+v", coords2, coords)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestResolve_CachedFailureNotRetried(t *testing.T) {
	provider := &fakeProvider{results: map[string]*models.Coordinates{}}
	cache := newTestCache(t, provider)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		coords, err := cache.Resolve(ctx, "nowhere at all")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if coords != nil {
			t.Fatalf("coords = %+v, want nil", coords)
		}
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times for a cached failure, want 1", provider.calls)
	}
}

func TestResolve_ProviderErrorNotCached(t *testing.T) {
	provider := &fakeProvider{err: errors.New("network down")}
	cache := newTestCache(t, provider)
	ctx := context.Background()

	coords, err := cache.Resolve(ctx, "1 rue de Rivoli, Paris")
	if err != nil || coords != nil {
		t.Fatalf("Resolve = (%+v, %v), want (nil, nil)", coords, err)
	}

	// The error was transient: a retry must reach the provider again.
	provider.err = nil
	provider.results = map[string]*models.Coordinates{"1 rue de Rivoli, Paris": {Lat: 48.86, Lng: 2.34}}
	coords, err = cache.Resolve(ctx, "1 rue de Rivoli, Paris")
	if err != nil {
		t.Fatalf("Resolve retry: %v", err)
	}
	if coords == nil {
		t.Errorf("transient failure was cached as permanent")
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}

func TestResolve_EmptyAddress(t *testing.T) {
	provider := &fakeProvider{}
	cache := newTestCache(t, provider)

	coords, err := cache.Resolve(context.Background(), "  ;; ")
	if err != nil || coords != nil {
		t.Fatalf("Resolve = (%+v, %v), want (nil, nil)", coords, err)
	}
	if provider.calls != 0 {
		t.Errorf("provider called for an empty address")
	}
}

func TestClearFailed(t *testing.T) {
	provider := &fakeProvider{results: map[string]*models.Coordinates{
		"Lyon": {Lat: 45.76, Lng: 4.84},
	}}
	cache := newTestCache(t, provider)
	ctx := context.Background()

	if _, err := cache.Resolve(ctx, "Lyon"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Resolve(ctx, "nowhere"); err != nil {
		t.Fatal(err)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.WithCoords != 1 || stats.WithoutCoords != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	n, err := cache.ClearFailed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ClearFailed removed %d, want 1", n)
	}

	// Success survives, failure is retryable again.
	if _, err := cache.Resolve(ctx, "Lyon"); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (Lyon stayed cached)", provider.calls)
	}
	if _, err := cache.Resolve(ctx, "nowhere"); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (failure retried after clear)", provider.calls)
	}
}

func TestResolveBatch_SequentialWithProgress(t *testing.T) {
	provider := &fakeProvider{results: map[string]*models.Coordinates{
		"Lyon":  {Lat: 45.76, Lng: 4.84},
		"Paris": {Lat: 48.85, Lng: 2.35},
	}}
	cache := newTestCache(t, provider)

	var progress [][2]int
	results, err := cache.ResolveBatch(context.Background(),
		[]string{"Lyon", "Paris", "nowhere"},
		func(current, total int) { progress = append(progress, [2]int{current, total}) })
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if results["Lyon"] == nil || results["Paris"] == nil || results["nowhere"] != nil {
		t.Errorf("unexpected batch results: %v", results)
	}
	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(progress) != 3 || progress[0] != want[0] || progress[2] != want[2] {
		t.Errorf("progress = %v, want %v", progress, want)
	}
}
