package database

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the comparison key for a user name: trimmed,
// NFC-composed and case-folded, so "Alice", "ALICE" and "alice" collide.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	// cases.Caser is stateful, so a fresh one per call.
	return cases.Fold().String(name)
}

// SameName reports whether two names are equal under NormalizeName.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
