package util

import (
	"strings"
	"unicode"
)

// DisplaySnippet collapses whitespace, drops non-printing runes and cuts the result
// to maxRunes (with a trailing "...").
func DisplaySnippet(s string, maxRunes int) string {
	return trimClean(s, maxRunes)
}

// CenteredWindow returns at most width runes of text centred on the match that starts
// at rune offset start and spans n runes. The window is shifted, not shrunk, when it
// runs into either end of the text.
func CenteredWindow(text []rune, start, n, width int) string {
	if len(text) == 0 {
		return ""
	}
	if width <= 0 {
		width = 240
	}
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		start = len(text)
	}
	mid := start + n/2
	lo := mid - width/2
	if lo < 0 {
		lo = 0
	}
	hi := lo + width
	if hi > len(text) {
		hi = len(text)
		lo = hi - width
		if lo < 0 {
			lo = 0
		}
	}
	return normalizeWhitespace(string(text[lo:hi]))
}

// OpeningWindow returns the first width runes of text with whitespace collapsed.
func OpeningWindow(text string, width int) string {
	return headRunes(normalizeWhitespace(text), width)
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func trimClean(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = normalizeWhitespace(SanitizeText(s))

	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsPrint(r) {
			out = append(out, r)
		}
	}
	runes := []rune(strings.TrimSpace(string(out)))
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return string(runes)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
