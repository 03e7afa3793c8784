package models

import "time"

// GeocacheEntry is one memoized address resolution. A nil Coordinates is
// a cached failure: the address is known unresolvable and will not be
// retried until explicitly cleared.
type GeocacheEntry struct {
	NormalizedAddress string       `json:"normalizedAddress"`
	Coordinates       *Coordinates `json:"coordinates,omitempty"`
	Provider          string       `json:"provider"`
	CachedAt          time.Time    `json:"cachedAt"`
}

// GeocacheStats summary counters over the geocache table
type GeocacheStats struct {
	Total         int `json:"total"`
	WithCoords    int `json:"withCoords"`
	WithoutCoords int `json:"withoutCoords"`
}
