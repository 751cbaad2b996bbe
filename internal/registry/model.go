package registry

import (
	"fmt"
	"strings"

	"validert/internal/models"
)

type AggregateLevel string

const (
	AggregatePerReport        AggregateLevel = "per_report"
	AggregatePerRule          AggregateLevel = "per_rule"
	AggregatePerIssueEvidence AggregateLevel = "per_issue_evidence"
	AggregatePerComponent     AggregateLevel = "per_component"
)

// ParseAggregateLevel accepts the canonical names plus the Norwegian and short
// spellings used in older scoring models. Empty means per-component.
func ParseAggregateLevel(s string) (AggregateLevel, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	switch v {
	case "", "per_component", "component", "bygningsdel":
		return AggregatePerComponent, nil
	case "per_report", "report", "rapport":
		return AggregatePerReport, nil
	case "per_rule", "rule", "regel":
		return AggregatePerRule, nil
	case "per_issue_evidence", "issue_evidence", "evidence":
		return AggregatePerIssueEvidence, nil
	default:
		return "", fmt.Errorf("unknown aggregate level %q", s)
	}
}

type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MaxDeduction *int   `json:"max_deduction"`
}

type ImprovementCategory string

const (
	ImprovementBlocker ImprovementCategory = "SPERRE_96"
	ImprovementMajor   ImprovementCategory = "VESENTLIG"
	ImprovementMinor   ImprovementCategory = "MINDRE"
)

// DefaultBlockerCeiling caps the total when a blocking rule fired.
const DefaultBlockerCeiling = 95

// Label and Consequence are the user-facing texts for an improvement category.
func (c ImprovementCategory) Label() string {
	switch c {
	case ImprovementBlocker:
		return "SPERRE ≥96"
	case ImprovementMajor:
		return "Vesentlig avvik"
	case ImprovementMinor:
		return "Mindre forbedring"
	}
	return ""
}

func (c ImprovementCategory) Consequence() string {
	switch c {
	case ImprovementBlocker:
		return "Sperre mot trygghetsscore ≥96"
	case ImprovementMajor:
		return "Økt reklamasjonsrisiko"
	case ImprovementMinor:
		return "Rettssakssårbarhet"
	}
	return ""
}

type Rule struct {
	ID             string              `json:"id"`
	Description    string              `json:"description"`
	Category       ImprovementCategory `json:"category"`
	BlocksTopScore bool                `json:"blocks_top_score"`
	Message        string              `json:"message"`
}

// ScoringModel is the loaded, read-only scoring configuration. It is safe for
// concurrent readers.
type ScoringModel struct {
	Info                models.ScoringModelInfo
	CategoryOrder       []string
	AggregateLevel      AggregateLevel
	DeductPerOccurrence bool
	ScoreStart          int
	ScoreFloor          int
	ScoreCeiling        int
	BlockerCeiling      int

	categories map[string]Category
	caps       map[string]int
	rules      map[string]Rule
	ruleOrder  []string
	raw        string
}

func (m *ScoringModel) SHA256() string {
	return m.Info.SHA256
}

// RawText is the exact configuration text the hash was computed over.
func (m *ScoringModel) RawText() string {
	return m.raw
}

func (m *ScoringModel) Category(id string) (Category, bool) {
	c, ok := m.categories[id]
	return c, ok
}

// Cap returns the category's deduction cap; ok is false for uncapped categories.
func (m *ScoringModel) Cap(categoryID string) (int, bool) {
	c, ok := m.caps[categoryID]
	return c, ok
}

func (m *ScoringModel) Rule(id string) (Rule, bool) {
	r, ok := m.rules[strings.TrimSpace(id)]
	return r, ok
}

func (m *ScoringModel) Rules() []Rule {
	out := make([]Rule, 0, len(m.ruleOrder))
	for _, id := range m.ruleOrder {
		out = append(out, m.rules[id])
	}
	return out
}

// BlocksTopScore reports whether the rule keeps a report out of the top band.
func (m *ScoringModel) BlocksTopScore(ruleID string) bool {
	r, ok := m.Rule(ruleID)
	return ok && r.BlocksTopScore
}

// Clamp limits a score to the model's floor and ceiling.
func (m *ScoringModel) Clamp(score int) int {
	if score < m.ScoreFloor {
		return m.ScoreFloor
	}
	if score > m.ScoreCeiling {
		return m.ScoreCeiling
	}
	return score
}
