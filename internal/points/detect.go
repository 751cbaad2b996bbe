package points

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"validert/internal/document"
	"validert/internal/models"
	"validert/internal/util"
)

const excerptRunes = 200

var (
	numericLabel   = regexp.MustCompile(`^\d+(\.\d+)*$`)
	conditionToken = regexp.MustCompile(`(?i)\b(TGIU|TG[0-3])\b`)
)

type Input struct {
	Text           string
	SourceFilename string
	Method         string
}

type Detector struct {
	classifier LineClassifier
}

// NewDetector uses the default pattern table when c is nil.
func NewDetector(c LineClassifier) *Detector {
	if c == nil {
		c = defaultClassifier
	}
	return &Detector{classifier: c}
}

type pageLine struct {
	page int
	line Line
}

// Detect finds the numbered outline of a paginated report. A report without headings
// yields an empty point list.
func (d *Detector) Detect(in Input) models.DetectedPointsPayload {
	pages := document.Split(in.Text)
	meta := models.ExtractionMeta{
		Method:    in.Method,
		CharCount: utf8.RuneCountInString(in.Text),
	}

	flat := make([]pageLine, 0, 256)
	for _, p := range pages {
		for _, raw := range p.Lines() {
			l := d.classifier.Classify(raw)
			switch l.Kind {
			case LineBlank:
				continue
			case LineNoise:
				meta.NoiseDropped++
				continue
			}
			flat = append(flat, pageLine{page: p.Number, line: l})
		}
	}
	meta.LineCount = len(flat)

	points := make([]models.DetectedPoint, 0, 32)
	for i := 0; i < len(flat); i++ {
		if flat[i].line.Kind != LineHeading {
			continue
		}
		end := i + 1
		for end < len(flat) && flat[end].line.Kind != LineHeading {
			end++
		}
		points = append(points, buildPoint(flat[i:end], len(points)+1))
	}

	return models.DetectedPointsPayload{
		Version: models.PayloadVersion,
		Document: models.DocumentInfo{
			DocumentHash:   util.SHA256HexString(in.Text),
			SourceFilename: in.SourceFilename,
			PageCount:      len(pages),
			Extraction:     meta,
		},
		Points: points,
	}
}

// Detect runs the default detector.
func Detect(in Input) models.DetectedPointsPayload {
	return NewDetector(nil).Detect(in)
}

func buildPoint(span []pageLine, order int) models.DetectedPoint {
	head := span[0].line
	lines := make([]string, 0, len(span))
	for _, pl := range span {
		lines = append(lines, pl.line.Text)
	}
	text := strings.Join(lines, "\n")

	p := models.DetectedPoint{
		PointKey:      fmt.Sprintf("P%04d", order),
		NativeLabel:   head.Label,
		Kind:          kindOf(head.Label),
		Title:         head.Title,
		PageStart:     span[0].page,
		PageEnd:       span[len(span)-1].page,
		OrderInDoc:    order,
		AnchorText:    head.Text,
		SpanHash:      SpanHash(text),
		ConditionCode: ConditionCode(text),
	}
	if numericLabel.MatchString(head.Label) {
		p.NumericID = head.Label
	}
	switch {
	case p.Title != "":
		p.Excerpt = p.Title
	case len(lines) > 1:
		p.Excerpt = util.DisplaySnippet(strings.Join(lines[1:], " "), excerptRunes)
	}
	if p.Excerpt == "" {
		p.Excerpt = "Point " + head.Label
	}
	return p
}

// SpanHash is the sha256 of the span text. An empty span has an empty hash.
func SpanHash(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return util.SHA256HexString(text)
}

// ConditionCode returns the first grade token (TG0-TG3, TGIU) in text, upper-cased.
func ConditionCode(text string) string {
	m := conditionToken.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func kindOf(label string) models.PointKind {
	if strings.Contains(label, ".") {
		return models.PointKindSubpoint
	}
	return models.PointKindPoint
}
