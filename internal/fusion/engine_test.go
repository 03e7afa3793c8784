package fusion

import (
	"testing"
	"time"

	"github.com/mverdon/formatrack/internal/identity"
	"github.com/mverdon/formatrack/pkg/models"
)

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration) *models.SourceMessage {
	return &models.SourceMessage{ID: id, ReceivedAt: t0.Add(offset)}
}

func confirmed(category models.Category) models.ClassificationResult {
	return models.ClassificationResult{Category: category, Confidence: 0.95}
}

func extraction(f models.Formation) models.ExtractionResult {
	return models.ExtractionResult{Formation: f}
}

func TestFuse_CreatesRecord(t *testing.T) {
	inputs := []Input{{
		Message:        msg("mail-1", 0),
		Classification: confirmed(models.CategoryInterConfirmation),
		Extraction: extraction(models.Formation{
			ExtendedCode:     "GIAPA1",
			StartDate:        "2026-02-04",
			Title:            "AI for developers",
			ParticipantCount: 5,
		}),
	}}

	result := Fuse(inputs, nil, nil)

	if len(result.Created) != 1 || len(result.Updated) != 0 || len(result.Ignored) != 0 {
		t.Fatalf("partition = %d created, %d updated, %d ignored; want 1/0/0",
			len(result.Created), len(result.Updated), len(result.Ignored))
	}
	f := result.Created[0]
	if want := identity.DeriveID("GIAPA1", "2026-02-04"); f.ID != want {
		t.Errorf("ID = %q, want %q", f.ID, want)
	}
	if f.Status != models.StatusConfirmed {
		t.Errorf("Status = %q, want confirmed", f.Status)
	}
	if f.Title != "AI for developers" {
		t.Errorf("Title = %q", f.Title)
	}
	if len(f.EmailIDs) != 1 || f.EmailIDs[0] != "mail-1" {
		t.Errorf("EmailIDs = %v, want [mail-1]", f.EmailIDs)
	}
	if result.Stats.Created != 1 || result.Stats.Total != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestFuse_CancellationUpdatesExisting(t *testing.T) {
	first := Fuse([]Input{{
		Message:        msg("mail-1", 0),
		Classification: confirmed(models.CategoryInterConfirmation),
		Extraction: extraction(models.Formation{
			ExtendedCode: "GIAPA1",
			StartDate:    "2026-02-04",
			Title:        "AI for developers",
		}),
	}}, nil, nil)

	second := Fuse([]Input{{
		Message:        msg("mail-2", time.Hour),
		Classification: confirmed(models.CategoryCancellation),
		Extraction: extraction(models.Formation{
			ExtendedCode: "GIAPA1",
			StartDate:    "2026-02-04",
		}),
	}}, first.Created, nil)

	if len(second.Updated) != 1 || len(second.Created) != 0 {
		t.Fatalf("partition = %d created, %d updated; want 0/1", len(second.Created), len(second.Updated))
	}
	f := second.Updated[0]
	if f.Status != models.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", f.Status)
	}
	if len(f.EmailIDs) != 2 {
		t.Errorf("EmailIDs = %v, want 2 entries", f.EmailIDs)
	}
	if second.Stats.Cancellations != 1 {
		t.Errorf("Cancellations = %d, want 1", second.Stats.Cancellations)
	}
	if f.Title != "AI for developers" {
		t.Errorf("Title lost on cancellation: %q", f.Title)
	}
}

func TestFuse_CancellationIsMonotonic(t *testing.T) {
	// Cancellation arrives between two confirmations; later
	// confirmations must not revive the record.
	inputs := []Input{
		{
			Message:        msg("mail-1", 0),
			Classification: confirmed(models.CategoryInterConfirmation),
			Extraction:     extraction(models.Formation{ExtendedCode: "GIAPA1", StartDate: "2026-02-04"}),
		},
		{
			Message:        msg("mail-2", time.Hour),
			Classification: confirmed(models.CategoryCancellation),
			Extraction:     extraction(models.Formation{ExtendedCode: "GIAPA1", StartDate: "2026-02-04"}),
		},
		{
			Message:        msg("mail-3", 2 * time.Hour),
			Classification: confirmed(models.CategoryInterConfirmation),
			Extraction:     extraction(models.Formation{ExtendedCode: "GIAPA1", StartDate: "2026-02-04"}),
		},
	}

	result := Fuse(inputs, nil, nil)
	if len(result.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(result.Created))
	}
	if result.Created[0].Status != models.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", result.Created[0].Status)
	}
}

func TestFuse_ParticipantLastWriteWins(t *testing.T) {
	inputs := []Input{
		{
			Message:        msg("mail-1", 0),
			Classification: confirmed(models.CategoryIntraConfirmation),
			Extraction: extraction(models.Formation{
				ExtendedCode: "SEC2",
				StartDate:    "2026-03-01",
				Participants: []models.Participant{{Name: "Jean", Email: "jean@x.fr"}},
			}),
		},
		{
			Message:        msg("mail-2", time.Hour),
			Classification: confirmed(models.CategoryIntraConfirmation),
			Extraction: extraction(models.Formation{
				ExtendedCode: "SEC2",
				StartDate:    "2026-03-01",
				Participants: []models.Participant{{Name: "Jean D.", Email: "jean@x.fr"}},
			}),
		},
	}

	result := Fuse(inputs, nil, nil)
	f := result.Created[0]
	if len(f.Participants) != 1 {
		t.Fatalf("participants = %v, want exactly one", f.Participants)
	}
	if f.Participants[0].Name != "Jean D." {
		t.Errorf("participant name = %q, want later value", f.Participants[0].Name)
	}
	if result.Stats.Fused != 1 {
		t.Errorf("Fused = %d, want 1", result.Stats.Fused)
	}
}

func TestFuse_Idempotent(t *testing.T) {
	inputs := []Input{
		{
			Message:        msg("mail-1", 0),
			Classification: confirmed(models.CategoryInterConfirmation),
			Extraction: extraction(models.Formation{
				ExtendedCode: "GIAPA1",
				StartDate:    "2026-02-04",
				Title:        "AI for developers",
				SessionDates: []string{"2026-02-04", "2026-02-05"},
				Participants: []models.Participant{{Name: "Jean", Email: "jean@x.fr"}},
				DayCount:     2,
			}),
		},
		{
			Message:        msg("mail-2", time.Hour),
			Classification: confirmed(models.CategoryCancellation),
			Extraction:     extraction(models.Formation{ExtendedCode: "GIAPA1", StartDate: "2026-02-04"}),
		},
	}

	first := Fuse(inputs, nil, nil)
	second := Fuse(inputs, first.Created, nil)

	if len(second.Created) != 0 {
		t.Fatalf("second pass created %d records, want 0", len(second.Created))
	}
	if len(second.Updated) != 1 {
		t.Fatalf("second pass updated %d records, want 1", len(second.Updated))
	}

	a, b := first.Created[0], second.Updated[0]
	if a.ID != b.ID || a.Status != b.Status || a.Title != b.Title ||
		a.DayCount != b.DayCount ||
		len(a.SessionDates) != len(b.SessionDates) ||
		len(a.Participants) != len(b.Participants) ||
		len(a.EmailIDs) != len(b.EmailIDs) {
		t.Errorf("second pass changed the record:\nfirst:  %+v\nsecond: %+v", a, b)
	}
	if second.Stats.Cancellations != 0 {
		t.Errorf("re-cancelling counted again: %d", second.Stats.Cancellations)
	}
}

func TestFuse_KeyUniqueness(t *testing.T) {
	inputs := []Input{
		{
			Message:        msg("mail-1", 0),
			Classification: confirmed(models.CategoryInterConfirmation),
			Extraction:     extraction(models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04"}),
		},
		{
			Message:        msg("mail-2", time.Minute),
			Classification: confirmed(models.CategoryInterConfirmation),
			Extraction:     extraction(models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04"}),
		},
		{
			Message:        msg("mail-3", 2 * time.Minute),
			Classification: confirmed(models.CategoryInterConfirmation),
			Extraction:     extraction(models.Formation{ExtendedCode: "B2", StartDate: "2026-02-04"}),
		},
	}

	result := Fuse(inputs, nil, nil)
	seen := map[string]bool{}
	for _, f := range append(result.Created, result.Updated...) {
		key := identity.NaturalKey(f.ExtendedCode, f.StartDate)
		if seen[key] {
			t.Errorf("duplicate natural key %q in output", key)
		}
		seen[key] = true
	}
	if len(result.Created) != 2 {
		t.Errorf("created = %d, want 2", len(result.Created))
	}
}

func TestFuse_IgnoresUnusableInputs(t *testing.T) {
	tests := []struct {
		name           string
		classification models.ClassificationResult
		formation      models.Formation
	}{
		{"reminder category", confirmed(models.CategoryReminder),
			models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04"}},
		{"intra request category", confirmed(models.CategoryIntraRequest),
			models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04"}},
		{"other category", confirmed(models.CategoryOther),
			models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04"}},
		{"low confidence degrades to other",
			models.ClassificationResult{Category: models.CategoryInterConfirmation, Confidence: 0.3},
			models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04"}},
		{"missing code", confirmed(models.CategoryInterConfirmation),
			models.Formation{StartDate: "2026-02-04"}},
		{"missing date", confirmed(models.CategoryInterConfirmation),
			models.Formation{ExtendedCode: "A1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Fuse([]Input{{
				Message:        msg("mail-1", 0),
				Classification: tt.classification,
				Extraction:     extraction(tt.formation),
			}}, nil, nil)

			if len(result.Ignored) != 1 || result.Stats.Ignored != 1 {
				t.Errorf("ignored = %d (stat %d), want 1", len(result.Ignored), result.Stats.Ignored)
			}
			if len(result.Created)+len(result.Updated) != 0 {
				t.Errorf("unusable input produced a record")
			}
		})
	}
}

func TestFuse_ExistingRecordsNotMutated(t *testing.T) {
	existing := &models.Formation{
		ID:           identity.DeriveID("A1", "2026-02-04"),
		ExtendedCode: "A1",
		StartDate:    "2026-02-04",
		Title:        "Original",
		Status:       models.StatusConfirmed,
	}

	Fuse([]Input{{
		Message:        msg("mail-1", 0),
		Classification: confirmed(models.CategoryCancellation),
		Extraction:     extraction(models.Formation{ExtendedCode: "A1", StartDate: "2026-02-04", Title: "Replaced"}),
	}}, []*models.Formation{existing}, nil)

	if existing.Title != "Original" || existing.Status != models.StatusConfirmed {
		t.Errorf("input record mutated: %+v", existing)
	}
}

func TestFuse_VirtualLocationHook(t *testing.T) {
	result := Fuse([]Input{{
		Message:        msg("mail-1", 0),
		Classification: confirmed(models.CategoryInterConfirmation),
		Extraction: extraction(models.Formation{
			ExtendedCode: "GIAPA1-DIST",
			StartDate:    "2026-02-04",
			Location: models.Location{
				Address:     "1 rue de Rivoli, Paris",
				Coordinates: &models.Coordinates{Lat: 48.85, Lng: 2.35},
			},
		}),
	}}, nil, VirtualLocation)

	f := result.Created[0]
	if f.Location.Address != "Formation à distance" {
		t.Errorf("Address = %q, want synthetic virtual address", f.Location.Address)
	}
	if f.Location.Coordinates != nil {
		t.Errorf("coordinates not cleared for virtual session")
	}
}

func TestFuse_VirtualHookSkipsCancelled(t *testing.T) {
	coords := &models.Coordinates{Lat: 48.85, Lng: 2.35}
	existing := &models.Formation{
		ID:           identity.DeriveID("GIAPA1-DIST", "2026-02-04"),
		ExtendedCode: "GIAPA1-DIST",
		StartDate:    "2026-02-04",
		Status:       models.StatusCancelled,
		Location:     models.Location{Address: "somewhere", Coordinates: coords},
	}

	result := Fuse([]Input{{
		Message:        msg("mail-1", 0),
		Classification: confirmed(models.CategoryInterConfirmation),
		Extraction:     extraction(models.Formation{ExtendedCode: "GIAPA1-DIST", StartDate: "2026-02-04"}),
	}}, []*models.Formation{existing}, VirtualLocation)

	f := result.Updated[0]
	if f.Location.Coordinates == nil || *f.Location.Coordinates != *coords {
		t.Errorf("cancelled record's coordinates were altered: %+v", f.Location.Coordinates)
	}
}
