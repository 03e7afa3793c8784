package fusion

import (
	"regexp"

	"github.com/mverdon/formatrack/pkg/models"
)

// Extended codes carrying a distance-learning segment mark virtual
// sessions, e.g. GIAPA1-DIST or FOAD-SEC2.
var virtualCodeRe = regexp.MustCompile(`(?i)(?:^|-)(DIST|FOAD|VISIO)(?:-|$)`)

const (
	virtualLocationName = "Classe virtuelle"
	virtualAddress      = "Formation à distance"
)

// IsVirtual reports whether a record's code marks a virtual session.
// Virtual sessions keep their synthetic address and are never geocoded.
func IsVirtual(f *models.Formation) bool {
	return virtualCodeRe.MatchString(f.ExtendedCode)
}

// VirtualLocation is the default LocationHook: it recognizes virtual
// session codes and forces their synthetic location, clearing any
// coordinates a stray extraction may have supplied. Cancelled records
// are left untouched: their coordinates are frozen.
func VirtualLocation(f *models.Formation) {
	if f.Status == models.StatusCancelled {
		return
	}
	if !virtualCodeRe.MatchString(f.ExtendedCode) {
		return
	}
	f.Location.Name = virtualLocationName
	f.Location.Address = virtualAddress
	f.Location.Room = ""
	f.Location.Coordinates = nil
}
