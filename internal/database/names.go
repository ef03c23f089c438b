package database

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldName returns the key used for case-insensitive identity uniqueness.
// The name is trimmed, NFC-normalized and Unicode case-folded, so "ALICE",
// "alice" and "Alice" collide, as do composed and decomposed "José".
// Diacritics are kept: "Jiří" and "Jiri" are different people.
func FoldName(name string) string {
	name = strings.TrimSpace(name)
	name = norm.NFC.String(name)
	return cases.Fold().String(name)
}

// EqualFold reports whether two names identify the same identity.
func EqualFold(a, b string) bool {
	return FoldName(a) == FoldName(b)
}
