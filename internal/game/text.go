package game

import "strings"

// StripFormatting removes legacy section-sign formatting codes (§a, §l, ...)
// from a chat line so text matching works on the plain message.
func StripFormatting(s string) string {
	if !strings.ContainsRune(s, '§') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
