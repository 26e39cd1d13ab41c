// Package security holds helpers for turning request input into safe
// filesystem names.
package security

import "strings"

// maxNameLen bounds generated directory and file names.
const maxNameLen = 128

// SanitizeFilename maps s onto a single path element. Runs of characters
// other than ASCII letters, digits, dot, underscore and dash become one
// underscore, and leading dots and underscores are trimmed so the result
// can never be "." or "..". Input with nothing usable yields "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
