package scoring

import (
	"strings"

	"validert/internal/analysis"
	"validert/internal/models"
	"validert/internal/registry"
	"validert/internal/util"
)

type Result struct {
	Payload    models.ScoringResultPayload
	Dropped    int
	Unresolved int
}

// Normalizer deduplicates and caps model deductions against one scoring model.
type Normalizer struct {
	model *registry.ScoringModel
}

func New(model *registry.ScoringModel) *Normalizer {
	return &Normalizer{model: model}
}

// DedupKey is the identity under which repeated deductions collapse.
func (n *Normalizer) DedupKey(d analysis.Deduction) string {
	rule := strings.TrimSpace(d.RuleID)
	if !n.model.DeductPerOccurrence {
		return rule
	}
	switch n.model.AggregateLevel {
	case registry.AggregatePerReport, registry.AggregatePerRule:
		return rule
	case registry.AggregatePerIssueEvidence:
		if d.Evidence != nil && strings.TrimSpace(d.Evidence.Snippet) != "" {
			return rule + "|" + util.SHA256HexString(strings.TrimSpace(d.Evidence.Snippet))
		}
		return rule + "|" + d.ComponentID
	default:
		return d.ComponentID + "|" + rule
	}
}

// Normalize rewrites the deductions in out to the surviving set and, when any of
// them maps to a category, recomputes out.Score. When nothing resolved, out.Score is
// left alone and the payload carries its total, which is nil if the model gave none.
func (n *Normalizer) Normalize(out *analysis.ModelOutput, detected models.DetectedPointsPayload) Result {
	spans := make(map[string]string, len(detected.Points))
	for _, p := range detected.Points {
		if _, ok := spans[p.NativeLabel]; !ok {
			spans[p.NativeLabel] = p.SpanHash
		}
	}

	res := Result{Payload: models.ScoringResultPayload{
		DocumentHash:    detected.Document.DocumentHash,
		ScoreByCategory: []models.CategoryScore{},
		Deductions:      []models.ScoredDeduction{},
		Blockers:        []string{},
		ScoringModel:    n.model.Info,
	}}

	seen := map[string]struct{}{}
	sums := map[string]int{}
	resolved := false
	blockers := newOrderedSet()

	for ci := range out.Findings {
		c := &out.Findings[ci]
		kept := make([]analysis.Deduction, 0, len(c.Deductions))
		for _, d := range c.Deductions {
			d.RuleID = strings.TrimSpace(d.RuleID)
			if d.ComponentID == "" {
				d.ComponentID = c.ComponentID
			}
			if d.Points < 0 {
				d.Points = 0
			}
			key := n.DedupKey(d)
			if _, dup := seen[key]; dup {
				res.Dropped++
				continue
			}
			seen[key] = struct{}{}

			cat, ok := n.model.ResolveCategory(d.CategoryID, d.RuleID)
			if ok {
				d.CategoryID = cat
				sums[cat] += d.Points
				resolved = true
			} else {
				d.CategoryID = ""
				res.Unresolved++
			}
			if n.model.BlocksTopScore(d.RuleID) {
				blockers.add(d.RuleID)
			}
			kept = append(kept, d)

			pointID := c.PointID
			if d.Evidence != nil && d.Evidence.PointID != "" {
				pointID = d.Evidence.PointID
			}
			res.Payload.Deductions = append(res.Payload.Deductions, models.ScoredDeduction{
				PointID:          pointID,
				ComponentID:      d.ComponentID,
				RuleID:           d.RuleID,
				CategoryID:       d.CategoryID,
				Points:           d.Points,
				EvidenceSpanHash: spans[pointID],
				DedupKey:         key,
			})
		}
		c.Deductions = kept
		for _, is := range c.Issues {
			if !is.Resolved && n.model.BlocksTopScore(is.RuleID) {
				blockers.add(strings.TrimSpace(is.RuleID))
			}
		}
	}
	res.Payload.Blockers = blockers.items

	if !resolved {
		// Nothing mapped to a category: the model's own score fields stand, and a
		// missing total stays missing.
		res.Payload.ScoreByCategory = n.priorBreakdown(out.Score.CategoryDeductions)
		if out.Score.Total != nil {
			prev := *out.Score.Total
			res.Payload.ScoreTotal = &prev
		}
		return res
	}

	total := 0
	for _, id := range n.model.CategoryOrder {
		cs := n.categoryRow(id, sums[id])
		if cs.MaxDeduction != nil && cs.Deduction > *cs.MaxDeduction {
			cs.Deduction = *cs.MaxDeduction
		}
		total += cs.Deduction
		res.Payload.ScoreByCategory = append(res.Payload.ScoreByCategory, cs)
	}

	score := n.model.Clamp(n.model.ScoreStart - total)
	if len(blockers.items) > 0 && score > n.model.BlockerCeiling {
		score = n.model.Clamp(n.model.BlockerCeiling)
	}
	res.Payload.ScoreTotal = &score
	res.Payload.ScoreComputed = true

	stored := score
	out.Score.Total = &stored
	out.Score.CategoryDeductions = append([]models.CategoryScore{}, res.Payload.ScoreByCategory...)
	return res
}

func (n *Normalizer) categoryRow(id string, deduction int) models.CategoryScore {
	cat, _ := n.model.Category(id)
	cs := models.CategoryScore{CategoryID: id, CategoryName: cat.Name, Deduction: deduction}
	if limit, ok := n.model.Cap(id); ok {
		l := limit
		cs.MaxDeduction = &l
	}
	return cs
}

// priorBreakdown lists every registry category with the deduction the model reported
// for it, zero when it reported none. Unknown category ids are ignored.
func (n *Normalizer) priorBreakdown(prior []models.CategoryScore) []models.CategoryScore {
	reported := map[string]int{}
	for _, p := range prior {
		if id, ok := n.model.ResolveCategory(p.CategoryID, ""); ok {
			reported[id] += max(p.Deduction, 0)
		}
	}
	rows := make([]models.CategoryScore, 0, len(n.model.CategoryOrder))
	for _, id := range n.model.CategoryOrder {
		rows = append(rows, n.categoryRow(id, reported[id]))
	}
	return rows
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: map[string]struct{}{}}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
