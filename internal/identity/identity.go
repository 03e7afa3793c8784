// Package identity derives stable keys and ids for formation records.
package identity

import (
	"strings"

	"github.com/google/uuid"
)

// keySeparator never appears in an extended code (alphanumerics and
// dashes) or an ISO date; sanitize strips it anyway so distinct
// (code, date) pairs can never collide.
const keySeparator = "|"

// namespace for UUIDv5 derivation; fixed so ids stay stable across runs.
var namespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, keySeparator, ""))
}

// NaturalKey returns the grouping key for a (extendedCode, startDate)
// pair. Pure and deterministic.
func NaturalKey(extendedCode, startDate string) string {
	return sanitize(extendedCode) + keySeparator + sanitize(startDate)
}

// DeriveID returns the storage primary key for a natural key: a UUIDv5
// over the key bytes, stable across repeated calls.
func DeriveID(extendedCode, startDate string) string {
	return uuid.NewSHA1(namespace, []byte(NaturalKey(extendedCode, startDate))).String()
}

// Complete reports whether both halves of the natural key are usable.
func Complete(extendedCode, startDate string) bool {
	return sanitize(extendedCode) != "" && sanitize(startDate) != ""
}
