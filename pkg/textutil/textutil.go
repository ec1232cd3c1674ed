package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var whitespaceRegex = regexp.MustCompile(`[\s_\-]+`)

// NormalizeName folds a column caption into a comparable key: full-width
// characters are narrowed, case is folded and whitespace, underscores and
// dashes are removed.
func NormalizeName(name string) string {
	name = width.Narrow.String(name)
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "\ufeff")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// IsASCII reports whether every byte of `s` is 7-bit.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
