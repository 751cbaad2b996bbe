package util

import "strings"

// SanitizeText makes extracted report text safe for Postgres text columns and stable
// for hashing. NUL and other control bytes are dropped, CRLF becomes LF, non-breaking
// and other Unicode spaces become plain spaces, and soft hyphens and zero-width marks
// are removed. Form feeds survive because they mark page boundaries.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(ch rune) rune {
		switch ch {
		case '\n', '\t', '\f':
			return ch
		case '\r':
			return '\n'
		case '\u00a0', '\u2007', '\u202f', '\u2002', '\u2003', '\u2009':
			return ' '
		case '\u00ad', '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		if ch < 0x20 || ch == 0x7f {
			return -1
		}
		return ch
	}, s)
	return strings.TrimSpace(s)
}
