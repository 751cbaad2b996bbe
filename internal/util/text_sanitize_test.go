package util

import "testing"

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"nul and controls", "ab\x00cd\x01\x02\n\txy", "abcd\n\txy"},
		{"form feed kept", "side 1\fside 2", "side 1\fside 2"},
		{"crlf", "1 Tak\r\nTG2\rslutt", "1 Tak\nTG2\nslutt"},
		{"nbsp heading", "2.1\u00a0Våtrom", "2.1 Våtrom"},
		{"soft hyphen and bom", "\ufeffbad\u00adrom", "badrom"},
		{"trimmed", "  \n tekst \n", "tekst"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeText(tc.in); got != tc.want {
				t.Fatalf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
