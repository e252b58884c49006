package engine

import (
	"regexp"
	"strings"
)

// Synthetic destination for records not linked to any known destination.
const UnknownDestination = "unknown"

var destinationPrefixRegex = regexp.MustCompile(`(?i)^/?r/`)

// Reduces a destination name to its lookup key: namespace prefix stripped, lowercased, and only [a-z0-9_] kept.
//
// "R/Example", "example" and "/r/EXAMPLE" all map to "example". Names that reduce to nothing map to UnknownDestination.
func NormalizeDestination(raw string) string {
	s := destinationPrefixRegex.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return UnknownDestination
	}
	return b.String()
}
