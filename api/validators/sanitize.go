package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters other than newline
// and tab, and truncates to maxLen runes. Free-text remarks go through here.
func SanitizeString(input string, maxLen int) string {
	return sanitize(input, maxLen, true)
}

// SanitizeLine is SanitizeString for single-line values such as order numbers
// and search terms; line breaks and tabs become spaces.
func SanitizeLine(input string, maxLen int) string {
	return sanitize(input, maxLen, false)
}

func sanitize(input string, maxLen int, multiline bool) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\n' || r == '\t':
			if multiline {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
		case r == '\r':
		case unicode.IsControl(r), r == unicode.ReplacementChar:
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if maxLen <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) <= maxLen {
		return out
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
