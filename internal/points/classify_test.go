package points

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		kind  LineKind
		label string
		title string
	}{
		{name: "blank", line: "   ", kind: LineBlank},
		{name: "top level heading", line: "1 Tak", kind: LineHeading, label: "1", title: "Tak"},
		{name: "sub heading", line: "2.1 Våtrom", kind: LineHeading, label: "2.1", title: "Våtrom"},
		{name: "trailing dot", line: "3. Kjeller", kind: LineHeading, label: "3", title: "Kjeller"},
		{name: "numbering only", line: "4.2", kind: LineHeading, label: "4.2"},
		{name: "five levels", line: "1.2.3.4.5 Dypt", kind: LineHeading, label: "1.2.3.4.5", title: "Dypt"},
		{name: "six levels is text", line: "1.2.3.4.5.6 For dypt", kind: LineText},
		{name: "lettered label", line: "3.2b Bad", kind: LineHeading, label: "3.2b", title: "Bad"},
		{name: "year is text", line: "2020 ble taket lagt om", kind: LineText},
		{name: "date is text", line: "12.03.24", kind: LineText},
		{name: "zero segment is text", line: "0 Innledning", kind: LineText},
		{name: "number range is text", line: "2.5 - 3.0 meter", kind: LineText},
		{name: "page footer", line: "Side 3 av 12", kind: LineNoise},
		{name: "page fraction", line: "3 / 12", kind: LineNoise},
		{name: "org number", line: "Org.nr: 912 345 678", kind: LineNoise},
		{name: "contact", line: "Tlf. 22 33 44 55", kind: LineNoise},
		{name: "print stamp", line: "Utskriftsdato: 01.02.2024", kind: LineNoise},
		{name: "body text", line: "Taket har TG2 grunnet alder.", kind: LineText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLine(tt.line)
			assert.Equal(t, tt.kind, got.Kind, got.Kind.String())
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.title, got.Title)
		})
	}
}

func TestCustomPatternTable(t *testing.T) {
	table := DefaultPatterns()
	table.Noise = append(table.Noise, NoisePattern{Name: "firm", Pattern: regexp.MustCompile(`(?i)^takstfirma as$`)})
	table.MaxDepth = 2
	c := NewClassifier(table)

	assert.Equal(t, LineNoise, c.Classify("Takstfirma AS").Kind)
	assert.Equal(t, LineText, c.Classify("1.2.3 Tre nivåer").Kind)
	assert.Equal(t, LineText, ClassifyLine("Takstfirma AS").Kind)
}
