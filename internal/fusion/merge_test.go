package fusion

import (
	"reflect"
	"testing"

	"github.com/mverdon/formatrack/pkg/models"
)

func TestMerge_MonotonicEnrichment(t *testing.T) {
	dst := &models.Formation{
		Title:      "AI for developers",
		ShortCode:  "GIAPA",
		ClientName: "ACME",
		DayCount:   3,
		HourCount:  21,
	}

	// Empty source values must never erase existing ones.
	merge(dst, &models.Formation{Title: "", DayCount: 0, HourCount: 0})

	if dst.Title != "AI for developers" || dst.ShortCode != "GIAPA" ||
		dst.ClientName != "ACME" || dst.DayCount != 3 || dst.HourCount != 21 {
		t.Errorf("empty merge regressed fields: %+v", dst)
	}

	// Non-empty values overwrite.
	merge(dst, &models.Formation{Title: "AI for devs (v2)", DayCount: 4})
	if dst.Title != "AI for devs (v2)" || dst.DayCount != 4 {
		t.Errorf("non-empty merge did not overwrite: %+v", dst)
	}
}

func TestMerge_SessionDatesUnion(t *testing.T) {
	dst := &models.Formation{SessionDates: []string{"2026-02-05", "2026-02-04"}}
	merge(dst, &models.Formation{SessionDates: []string{"2026-02-04", "2026-02-10"}})

	want := []string{"2026-02-04", "2026-02-05", "2026-02-10"}
	if !reflect.DeepEqual(dst.SessionDates, want) {
		t.Errorf("SessionDates = %v, want %v", dst.SessionDates, want)
	}
}

func TestMerge_ParticipantCountFromRoster(t *testing.T) {
	dst := &models.Formation{ParticipantCount: 2}
	merge(dst, &models.Formation{Participants: []models.Participant{
		{Name: "A", Email: "a@x.fr"},
		{Name: "B", Email: "b@x.fr"},
		{Name: "C", Email: "c@x.fr"},
	}})

	if dst.ParticipantCount != 3 {
		t.Errorf("ParticipantCount = %d, want max(2, 3) = 3", dst.ParticipantCount)
	}

	// A larger stated count stands.
	merge(dst, &models.Formation{ParticipantCount: 8})
	if dst.ParticipantCount != 8 {
		t.Errorf("ParticipantCount = %d, want 8", dst.ParticipantCount)
	}
}

func TestMerge_EmaillessParticipantsRetained(t *testing.T) {
	dst := &models.Formation{}
	merge(dst, &models.Formation{Participants: []models.Participant{{Name: "Jean"}}})
	merge(dst, &models.Formation{Participants: []models.Participant{{Name: "Jean"}}})

	// No dedup key without an email: both occurrences stay.
	if len(dst.Participants) != 2 {
		t.Errorf("participants = %v, want both email-less entries kept", dst.Participants)
	}
}

func TestMerge_ParticipantOrderPreserved(t *testing.T) {
	dst := &models.Formation{Participants: []models.Participant{
		{Name: "Alice", Email: "alice@x.fr"},
		{Name: "Bob", Email: "bob@x.fr"},
	}}
	merge(dst, &models.Formation{Participants: []models.Participant{
		{Name: "Alice Martin", Email: "alice@x.fr"},
	}})

	if dst.Participants[0].Name != "Alice Martin" || dst.Participants[1].Name != "Bob" {
		t.Errorf("replacement moved participants: %v", dst.Participants)
	}
}

func TestMerge_LocationFields(t *testing.T) {
	dst := &models.Formation{Location: models.Location{
		Name:        "Tour First",
		Coordinates: &models.Coordinates{Lat: 48.89, Lng: 2.24},
	}}

	merge(dst, &models.Formation{Location: models.Location{Address: "1 Parvis de La Défense", Room: "R204"}})

	if dst.Location.Name != "Tour First" {
		t.Errorf("Name erased: %q", dst.Location.Name)
	}
	if dst.Location.Address != "1 Parvis de La Défense" || dst.Location.Room != "R204" {
		t.Errorf("location not enriched: %+v", dst.Location)
	}
	if dst.Location.Coordinates == nil {
		t.Errorf("coordinates cleared by scalar merge")
	}

	merge(dst, &models.Formation{Location: models.Location{Coordinates: &models.Coordinates{Lat: 1, Lng: 2}}})
	if dst.Location.Coordinates.Lat != 1 {
		t.Errorf("explicit coordinates not applied: %+v", dst.Location.Coordinates)
	}
}

func TestMerge_CancelledCoordinatesFrozen(t *testing.T) {
	frozen := &models.Coordinates{Lat: 48.89, Lng: 2.24}
	dst := &models.Formation{
		Status:   models.StatusCancelled,
		Location: models.Location{Coordinates: frozen},
	}

	merge(dst, &models.Formation{Location: models.Location{Coordinates: &models.Coordinates{Lat: 0, Lng: 0}}})

	if *dst.Location.Coordinates != *frozen {
		t.Errorf("cancelled record's coordinates changed: %+v", dst.Location.Coordinates)
	}
}

func TestMerge_NestedObjectsShallowMerged(t *testing.T) {
	dst := &models.Formation{
		Billing: &models.Billing{Entity: "ACME SAS", OrderRef: "PO-12"},
	}
	merge(dst, &models.Formation{
		Billing: &models.Billing{AgreementRef: "CONV-7"},
		Contact: &models.Contact{Name: "Claire", Phone: "0102030405"},
	})

	if dst.Billing.Entity != "ACME SAS" || dst.Billing.OrderRef != "PO-12" || dst.Billing.AgreementRef != "CONV-7" {
		t.Errorf("billing shallow merge wrong: %+v", dst.Billing)
	}
	if dst.Contact == nil || dst.Contact.Name != "Claire" {
		t.Errorf("contact not created from source: %+v", dst.Contact)
	}

	merge(dst, &models.Formation{Contact: &models.Contact{Email: "claire@x.fr"}})
	if dst.Contact.Name != "Claire" || dst.Contact.Email != "claire@x.fr" {
		t.Errorf("contact merge regressed: %+v", dst.Contact)
	}
}

func TestMerge_AccessCredentials(t *testing.T) {
	dst := &models.Formation{Access: models.Access{Login: "trainer"}}
	merge(dst, &models.Formation{Access: models.Access{Password: "s3cret"}})

	if dst.Access.Login != "trainer" || dst.Access.Password != "s3cret" {
		t.Errorf("access merge wrong: %+v", dst.Access)
	}
}
