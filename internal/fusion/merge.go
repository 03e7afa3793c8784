package fusion

import (
	"sort"

	"github.com/mverdon/formatrack/pkg/models"
)

// merge applies one partial extraction onto an accumulating record.
// Enrichment only: an absent or empty source value never erases an
// existing target value. Status is engine-owned and never merged here.
func merge(dst *models.Formation, src *models.Formation) {
	mergeString(&dst.Title, src.Title)
	mergeString(&dst.ShortCode, src.ShortCode)
	mergeString(&dst.ExtendedCode, src.ExtendedCode)
	mergeString(&dst.StartDate, src.StartDate)
	mergeString(&dst.EndDate, src.EndDate)
	mergeString(&dst.CustomizationLevel, src.CustomizationLevel)
	mergeString(&dst.ClientName, src.ClientName)
	if src.SessionType != "" {
		dst.SessionType = src.SessionType
	}

	if src.DayCount > 0 {
		dst.DayCount = src.DayCount
	}
	if src.HourCount > 0 {
		dst.HourCount = src.HourCount
	}

	dst.SessionDates = unionSorted(dst.SessionDates, src.SessionDates)
	mergeParticipants(dst, src.Participants)

	if src.ParticipantCount > 0 {
		dst.ParticipantCount = src.ParticipantCount
	}
	// The roster itself is at least as authoritative as any stated count.
	if n := len(dst.Participants); n > dst.ParticipantCount {
		dst.ParticipantCount = n
	}

	mergeLocation(dst, &src.Location)

	mergeString(&dst.Access.Login, src.Access.Login)
	mergeString(&dst.Access.Password, src.Access.Password)

	if src.Billing != nil {
		if dst.Billing == nil {
			dst.Billing = &models.Billing{}
		}
		mergeString(&dst.Billing.Entity, src.Billing.Entity)
		mergeString(&dst.Billing.OrderRef, src.Billing.OrderRef)
		mergeString(&dst.Billing.AgreementRef, src.Billing.AgreementRef)
	}
	if src.Contact != nil {
		if dst.Contact == nil {
			dst.Contact = &models.Contact{}
		}
		mergeString(&dst.Contact.Name, src.Contact.Name)
		mergeString(&dst.Contact.Email, src.Contact.Email)
		mergeString(&dst.Contact.Phone, src.Contact.Phone)
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeLocation merges field by field. Coordinates move only when the
// source supplies them, and never onto a cancelled record: its
// coordinates are frozen.
func mergeLocation(dst *models.Formation, src *models.Location) {
	mergeString(&dst.Location.Name, src.Name)
	mergeString(&dst.Location.Address, src.Address)
	mergeString(&dst.Location.Room, src.Room)
	if src.Coordinates != nil && dst.Status != models.StatusCancelled {
		c := *src.Coordinates
		dst.Location.Coordinates = &c
	}
}

// mergeParticipants merges the source roster keyed by email address:
// a later participant with a known email replaces the earlier entry in
// place, so first-appearance order is preserved. Participants without
// an email have no dedup key and are all retained.
func mergeParticipants(dst *models.Formation, src []models.Participant) {
	for _, p := range src {
		if p.Email == "" {
			dst.Participants = append(dst.Participants, p)
			continue
		}
		replaced := false
		for i := range dst.Participants {
			if dst.Participants[i].Email == p.Email {
				dst.Participants[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Participants = append(dst.Participants, p)
		}
	}
}

// unionSorted merges two date lists into a deduplicated ascending list.
// ISO dates sort correctly as strings.
func unionSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, d := range lists {
			if d == "" {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// appendUnique adds id to ids if not already present
func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
