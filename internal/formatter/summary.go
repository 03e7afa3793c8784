package formatter

import (
	"fmt"
	"strings"

	"github.com/mverdon/formatrack/pkg/models"
)

// Summary renders formation records for terminal output
type Summary struct {
	maxParticipants int
}

// NewSummary creates a terminal formatter
func NewSummary() *Summary {
	return &Summary{maxParticipants: 10}
}

// FormatFormation renders one record as a short block
func (s *Summary) FormatFormation(f *models.Formation) string {
	var sb strings.Builder

	marker := " "
	if f.Status == models.StatusCancelled {
		marker = "✗"
	}
	title := f.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&sb, "%s %s  %s\n", marker, f.ExtendedCode, title)

	dates := f.StartDate
	if f.EndDate != "" && f.EndDate != f.StartDate {
		dates += " → " + f.EndDate
	}
	fmt.Fprintf(&sb, "   %s", dates)
	if f.DayCount > 0 {
		fmt.Fprintf(&sb, "  (%dd", f.DayCount)
		if f.HourCount > 0 {
			fmt.Fprintf(&sb, ", %gh", f.HourCount)
		}
		sb.WriteString(")")
	}
	sb.WriteString("\n")

	if f.ClientName != "" {
		fmt.Fprintf(&sb, "   client: %s\n", f.ClientName)
	}
	if f.Location.Address != "" || f.Location.Name != "" {
		loc := strings.TrimSpace(strings.Join(nonEmpty(f.Location.Name, f.Location.Address), ", "))
		if f.Location.Coordinates != nil {
			loc += fmt.Sprintf(" [%.5f, %.5f]", f.Location.Coordinates.Lat, f.Location.Coordinates.Lng)
		}
		fmt.Fprintf(&sb, "   location: %s\n", loc)
	}
	if n := len(f.Participants); n > 0 {
		fmt.Fprintf(&sb, "   participants (%d): %s\n", f.ParticipantCount, s.participantList(f.Participants))
	} else if f.ParticipantCount > 0 {
		fmt.Fprintf(&sb, "   participants: %d\n", f.ParticipantCount)
	}
	fmt.Fprintf(&sb, "   emails: %d\n", len(f.EmailIDs))

	return sb.String()
}

func (s *Summary) participantList(participants []models.Participant) string {
	names := make([]string, 0, len(participants))
	for i, p := range participants {
		if i == s.maxParticipants {
			names = append(names, "…")
			break
		}
		if p.Name != "" {
			names = append(names, p.Name)
		} else {
			names = append(names, p.Email)
		}
	}
	return strings.Join(names, ", ")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
