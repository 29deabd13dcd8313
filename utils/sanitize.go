package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// PlainText strips all markup and trims surrounding whitespace.
func PlainText(input string) string {
	return strings.TrimSpace(html.UnescapeString(stripper.Sanitize(input)))
}

// RuneLen counts characters, not bytes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
