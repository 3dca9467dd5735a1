package core

import (
	"strings"
)

const invalidFilenameChars = "<>:\"/\\|?*"

// UnknownName replaces names that sanitize to nothing.
const UnknownName = "Unknown"

// SanitizeName makes name safe as a single path component. Illegal and
// control characters become spaces, runs of spaces collapse and trailing dots
// are dropped. An empty result degrades to UnknownName.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastSpace := false
	for _, r := range name {
		if r < 32 || r == 127 || r == ' ' || strings.ContainsRune(invalidFilenameChars, r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}

	result := strings.TrimRight(strings.TrimSpace(b.String()), ". ")
	if result == "" || result == "." || result == ".." {
		return UnknownName
	}
	return result
}
