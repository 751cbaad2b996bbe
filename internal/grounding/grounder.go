package grounding

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"validert/internal/analysis"
	"validert/internal/document"
	"validert/internal/models"
	"validert/internal/util"
)

const DefaultWindow = 240

var defaultSummaryMarkers = []string{"sammendrag", "oppsummering", "konklusjon", "summary", "conclusion"}

type Stats struct {
	Kept          int `json:"kept"`
	Synthesized   int `json:"synthesized"`
	DriversLinked int `json:"drivers_linked"`
	Placeholders  int `json:"placeholders"`
}

// Grounder makes sure every issue and score driver in a model output points at a
// page and snippet of the source text. It only fills in or replaces unusable
// evidence and never drops an issue.
type Grounder struct {
	window  int
	markers []string
}

func New(window int, summaryMarkers ...string) *Grounder {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(summaryMarkers) == 0 {
		summaryMarkers = defaultSummaryMarkers
	}
	markers := make([]string, 0, len(summaryMarkers))
	for _, m := range summaryMarkers {
		markers = append(markers, strings.ToLower(m))
	}
	return &Grounder{window: window, markers: markers}
}

type page struct {
	number  int
	text    []rune
	lower   []rune
	summary bool
}

type source struct {
	pages  []page
	points []models.DetectedPoint
	byID   map[string]models.DetectedPoint
}

// Ground rewrites evidence in place. Running it again on its own output changes
// nothing.
func (g *Grounder) Ground(out *analysis.ModelOutput, pages []document.Page, points []models.DetectedPoint) Stats {
	src := g.index(pages, points)
	var st Stats

	for ci := range out.Findings {
		c := &out.Findings[ci]
		for ii := range c.Issues {
			is := &c.Issues[ii]
			if kept := src.usable(is.Evidence, c); len(kept) > 0 {
				is.Evidence = kept
				st.Kept++
				continue
			}
			is.Evidence = []models.Evidence{g.fallback(src, c, is)}
			st.Synthesized++
		}
		for di := range c.Deductions {
			d := &c.Deductions[di]
			if d.Evidence != nil {
				if kept := src.usable([]models.Evidence{*d.Evidence}, c); len(kept) == 1 {
					d.Evidence = &kept[0]
					continue
				}
				d.Evidence = nil
			}
			if ev, ok := issueEvidenceFor(c, d.RuleID); ok {
				d.Evidence = &ev
			}
		}
	}

	for di := range out.TopScoreDrivers {
		drv := &out.TopScoreDrivers[di]
		if kept := src.usable(drv.Evidence, nil); len(kept) > 0 {
			drv.Evidence = kept
			continue
		}
		if linked := evidenceForRules(out.Findings, drv.RuleIDs); len(linked) > 0 {
			drv.Evidence = linked
			st.DriversLinked++
			continue
		}
		if ev, ok := anyIssueEvidence(out.Findings); ok {
			drv.Evidence = []models.Evidence{ev}
			st.DriversLinked++
			continue
		}
		drv.Evidence = []models.Evidence{{
			Page:         1,
			Source:       models.EvidenceSourceLocal,
			MatchExplain: "no grounded evidence available",
		}}
		st.Placeholders++
	}
	return st
}

func (g *Grounder) index(pages []document.Page, points []models.DetectedPoint) source {
	src := source{points: points, byID: make(map[string]models.DetectedPoint, len(points))}
	for _, p := range points {
		if _, seen := src.byID[p.NativeLabel]; !seen {
			src.byID[p.NativeLabel] = p
		}
	}
	for _, p := range pages {
		text := []rune(norm.NFC.String(p.Text))
		lower := toLower(text)
		src.pages = append(src.pages, page{
			number:  p.Number,
			text:    text,
			lower:   lower,
			summary: containsAny(string(lower), g.markers),
		})
	}
	return src
}

// usable normalizes the evidence items that have a snippet and a page and drops
// the rest.
func (s source) usable(items []models.Evidence, c *analysis.Component) []models.Evidence {
	out := make([]models.Evidence, 0, len(items))
	for _, ev := range items {
		ev = s.normalize(ev, c)
		if ev.Snippet == "" || ev.Page < 1 {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (s source) normalize(ev models.Evidence, c *analysis.Component) models.Evidence {
	ev.Snippet = strings.TrimSpace(ev.Snippet)
	if ev.Snippet == "" {
		ev.Snippet = strings.TrimSpace(ev.Text)
	}
	ev.Text = ""

	switch strings.ToUpper(strings.TrimSpace(ev.Source)) {
	case models.EvidenceSourceSummary:
		ev.Source = models.EvidenceSourceSummary
	default:
		ev.Source = models.EvidenceSourceLocal
	}
	if c != nil {
		if ev.PointID == "" {
			ev.PointID = c.PointID
		}
		if ev.ConditionCode == "" {
			ev.ConditionCode = c.ConditionCode
		}
	}
	if p, ok := s.byID[ev.PointID]; ok {
		if ev.Heading == "" {
			ev.Heading = p.AnchorText
		}
		if ev.ConditionCode == "" {
			ev.ConditionCode = p.ConditionCode
		}
	}
	ev.ConditionCode = strings.ToUpper(strings.TrimSpace(ev.ConditionCode))
	if ev.MatchExplain == "" {
		ev.MatchExplain = "reported by model"
	}
	return ev
}

func (g *Grounder) fallback(src source, c *analysis.Component, is *analysis.Issue) models.Evidence {
	needles := []string{c.ComponentID, c.Title, is.Title}
	for _, p := range src.pages {
		at, n, needle := p.find(needles)
		if at < 0 {
			continue
		}
		ev := models.Evidence{
			Page:         p.number,
			Snippet:      util.CenteredWindow(p.text, at, n, g.window),
			MatchExplain: fmt.Sprintf("matched %q on page %d", needle, p.number),
			Source:       models.EvidenceSourceLocal,
		}
		if p.summary {
			ev.Source = models.EvidenceSourceSummary
		}
		if pt, ok := src.pointAt(p, at); ok {
			ev.PointID = pt.NativeLabel
			ev.Heading = pt.AnchorText
		}
		return src.normalize(ev, c)
	}

	ev := models.Evidence{
		Page:         1,
		Source:       models.EvidenceSourceLocal,
		MatchExplain: "fallback: component not found in text, showing the opening of the first page",
	}
	if len(src.pages) > 0 {
		ev.Page = src.pages[0].number
		ev.Snippet = util.OpeningWindow(string(src.pages[0].text), g.window)
	}
	if ev.Snippet == "" {
		ev.Snippet = firstNonEmpty(is.Title, is.Description, c.Title, c.ComponentID, "(no source text)")
		ev.MatchExplain = "fallback: source text unavailable, showing the claim itself"
	}
	return src.normalize(ev, c)
}

// find returns the rune offset and length of the earliest needle on the page.
func (p page) find(needles []string) (int, int, string) {
	best, bestLen, bestNeedle := -1, 0, ""
	for _, n := range needles {
		n = strings.TrimSpace(norm.NFC.String(n))
		if len([]rune(n)) < 2 {
			continue
		}
		nr := toLower([]rune(n))
		if i := indexRunes(p.lower, nr); i >= 0 && (best < 0 || i < best) {
			best, bestLen, bestNeedle = i, len(nr), n
		}
	}
	return best, bestLen, bestNeedle
}

// pointAt picks the detected point whose span covers offset at on page p.
func (s source) pointAt(p page, at int) (models.DetectedPoint, bool) {
	var (
		found models.DetectedPoint
		ok    bool
	)
	for _, pt := range s.points {
		if pt.PageStart > p.number || pt.PageEnd < p.number {
			continue
		}
		if pt.PageStart == p.number {
			anchor := toLower([]rune(norm.NFC.String(pt.AnchorText)))
			if i := indexRunes(p.lower, anchor); i < 0 || i > at {
				continue
			}
		}
		found, ok = pt, true
	}
	return found, ok
}

func issueEvidenceFor(c *analysis.Component, ruleID string) (models.Evidence, bool) {
	for _, is := range c.Issues {
		if is.RuleID == ruleID && len(is.Evidence) > 0 {
			return is.Evidence[0], true
		}
	}
	return models.Evidence{}, false
}

func evidenceForRules(findings []analysis.Component, ruleIDs []string) []models.Evidence {
	want := make(map[string]struct{}, len(ruleIDs))
	for _, r := range ruleIDs {
		want[r] = struct{}{}
	}
	out := []models.Evidence{}
	seen := map[string]struct{}{}
	for _, c := range findings {
		for _, is := range c.Issues {
			if _, ok := want[is.RuleID]; !ok {
				continue
			}
			for _, ev := range is.Evidence {
				if ev.Snippet == "" {
					continue
				}
				k := fmt.Sprintf("%d|%s", ev.Page, ev.Snippet)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				out = append(out, ev)
			}
		}
	}
	return out
}

func anyIssueEvidence(findings []analysis.Component) (models.Evidence, bool) {
	for _, c := range findings {
		for _, is := range c.Issues {
			for _, ev := range is.Evidence {
				if ev.Snippet != "" {
					return ev, true
				}
			}
		}
	}
	return models.Evidence{}, false
}

func toLower(r []rune) []rune {
	out := make([]rune, len(r))
	for i, ch := range r {
		out[i] = unicode.ToLower(ch)
	}
	return out
}

func indexRunes(hay, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j := range needle {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
