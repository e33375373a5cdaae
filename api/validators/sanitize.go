package validators

import (
	"strings"
	"unicode"
)

// SanitizeString collapses whitespace runs to a single space, drops control
// characters and truncates to maxLen runes. maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	runes, pendingSpace := 0, false
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if maxLen > 0 && runes >= maxLen {
			break
		}
		if pendingSpace {
			if maxLen > 0 && runes+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
