package placeholder

import (
	"strconv"
	"strings"
)

// maxNameLen caps derived placeholder names. Long markers (full sentences)
// would otherwise produce unreadable tokens.
const maxNameLen = 20

// DeriveName turns a literal marker string into a placeholder name:
// spaces and dashes become underscores, everything is uppercased, characters
// outside [A-Z0-9_] are dropped, and the result is capped at 20 characters.
// A marker that sanitizes to nothing gets the positional fallback
// PLACEHOLDER_<n> (1-based).
func DeriveName(marker string, ordinal int) string {
	s := strings.ToUpper(marker)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")

	var b strings.Builder
	for _, c := range s {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	name := b.String()
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" {
		return "PLACEHOLDER_" + strconv.Itoa(ordinal)
	}
	return name
}
