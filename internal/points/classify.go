package points

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type LineKind int

const (
	LineBlank LineKind = iota
	LineNoise
	LineHeading
	LineText
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineNoise:
		return "noise"
	case LineHeading:
		return "heading"
	default:
		return "text"
	}
}

// Line is one classified line. Label and Title are set for headings only.
type Line struct {
	Kind  LineKind
	Text  string
	Label string
	Title string
}

// LineClassifier decides what a single line of report text is. Report templates with
// other heading or letterhead conventions plug in their own classifier.
type LineClassifier interface {
	Classify(line string) Line
}

type NoisePattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// PatternTable drives PatternClassifier. Heading must capture the numeric label in
// group 1, an optional trailing letter in group 2 and the title in group 3.
type PatternTable struct {
	Noise   []NoisePattern
	Heading *regexp.Regexp
	// MaxDepth limits how many dot-separated segments a heading label may have.
	MaxDepth int
}

var defaultNoise = []NoisePattern{
	{Name: "page_footer", Pattern: regexp.MustCompile(`(?i)^(side|page|s\.)\s*\d+(\s*(av|of|/)\s*\d+)?$`)},
	{Name: "page_fraction", Pattern: regexp.MustCompile(`^\d+\s*/\s*\d+$`)},
	{Name: "org_number", Pattern: regexp.MustCompile(`(?i)^(org\.?\s*nr\.?|organisasjonsnummer|org\.?\s*nummer)(\s|:|$)`)},
	{Name: "contact", Pattern: regexp.MustCompile(`(?i)^(tlf\.?|telefon|mobil|e-?post|www\.|https?://)`)},
	{Name: "print_stamp", Pattern: regexp.MustCompile(`(?i)^(utskriftsdato|utskrift|utskrevet|generert|printed)(\s|:|$)`)},
	{Name: "report_ref", Pattern: regexp.MustCompile(`(?i)^(rapportnr\.?|rapport\s*nr\.?|oppdragsnr\.?)(\s|:|$)`)},
}

var defaultHeading = regexp.MustCompile(`^([1-9]\d{0,2}(?:\.[1-9]\d{0,2})*)([a-z])?\.?(?:\s+(.*))?$`)

func DefaultPatterns() PatternTable {
	noise := make([]NoisePattern, len(defaultNoise))
	copy(noise, defaultNoise)
	return PatternTable{Noise: noise, Heading: defaultHeading, MaxDepth: 5}
}

type PatternClassifier struct {
	table PatternTable
}

func NewClassifier(table PatternTable) *PatternClassifier {
	if table.Heading == nil {
		table.Heading = defaultHeading
	}
	if table.MaxDepth <= 0 {
		table.MaxDepth = 5
	}
	return &PatternClassifier{table: table}
}

var defaultClassifier = NewClassifier(DefaultPatterns())

// ClassifyLine classifies a line with the default Norwegian/English pattern table.
func ClassifyLine(line string) Line {
	return defaultClassifier.Classify(line)
}

func (c *PatternClassifier) Classify(line string) Line {
	text := strings.TrimSpace(line)
	if text == "" {
		return Line{Kind: LineBlank}
	}
	for _, n := range c.table.Noise {
		if n.Pattern.MatchString(text) {
			return Line{Kind: LineNoise, Text: text}
		}
	}
	m := c.table.Heading.FindStringSubmatch(text)
	if m == nil || strings.Count(m[1], ".")+1 > c.table.MaxDepth {
		return Line{Kind: LineText, Text: text}
	}
	title := strings.TrimSpace(m[3])
	if title != "" {
		r, _ := utf8.DecodeRuneInString(title)
		if !unicode.IsLetter(r) {
			return Line{Kind: LineText, Text: text}
		}
	}
	return Line{Kind: LineHeading, Text: text, Label: m[1] + m[2], Title: title}
}
