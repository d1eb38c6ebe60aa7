package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Entity-encoded markup nested deeper than this is returned still escaped.
const maxStripPasses = 4

// StripMarkup removes every HTML element from value, unescapes entities and trims the result.
// Model generated copy is displayed verbatim, so nothing tag-like may survive, including tags
// hidden behind entities.
func StripMarkup(value string) string {
	if value == "" {
		return ""
	}
	if !strings.ContainsAny(value, "<>&") {
		return strings.TrimSpace(value)
	}

	current := value
	for i := 0; i < maxStripPasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(html.UnescapeString(current)))
		if next == current {
			return strings.TrimSpace(next)
		}
		current = next
	}
	return strings.TrimSpace(strictPolicy.Sanitize(current))
}

// Clip trims value and truncates it to at most max runes. A non-positive max disables truncation.
func Clip(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if max <= 0 || utf8.RuneCountInString(trimmed) <= max {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:max]))
}

// RuneLen reports the length of value in runes after trimming.
func RuneLen(value string) int {
	return utf8.RuneCountInString(strings.TrimSpace(value))
}
