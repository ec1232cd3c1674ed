package sku

import (
	"strings"
	"unicode"
)

// Normalize trims surrounding whitespace (full-width space included) and
// lowercases `raw`. The second return value is false when nothing is left.
func Normalize(raw string) (string, bool) {
	out := strings.ToLower(strings.TrimFunc(raw, unicode.IsSpace))
	if out == "" {
		return "", false
	}
	return out, true
}

// BaseCode returns the marketplace product code of a compound sku, the part
// left of its first hyphen.
func BaseCode(sku string) string {
	if sku == "" {
		return ""
	}
	code, _, _ := strings.Cut(sku, "-")
	return strings.TrimFunc(code, unicode.IsSpace)
}
