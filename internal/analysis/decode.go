package analysis

import (
	"math"
	"strconv"
	"strings"

	"validert/internal/models"
)

func fromObject(obj map[string]any) ModelOutput {
	out := Empty()
	for _, v := range list(first(obj, "findings", "components")) {
		if m, ok := v.(map[string]any); ok {
			out.Findings = append(out.Findings, decodeComponent(m))
		}
	}
	for _, v := range list(first(obj, "top_score_drivers", "score_drivers")) {
		if m, ok := v.(map[string]any); ok {
			out.TopScoreDrivers = append(out.TopScoreDrivers, decodeDriver(m))
		}
	}
	if m, ok := obj["meta"].(map[string]any); ok {
		out.Meta = m
	}
	out.Score = decodeScore(obj)
	return out
}

func decodeComponent(m map[string]any) Component {
	c := Component{
		ComponentID:   str(first(m, "component_id", "id")),
		Title:         str(first(m, "title", "component", "name")),
		PointID:       str(first(m, "point_id", "point")),
		ConditionCode: strings.ToUpper(str(first(m, "condition_code", "tg"))),
		Issues:        []Issue{},
		Deductions:    []Deduction{},
	}
	for _, v := range list(m["issues"]) {
		if im, ok := v.(map[string]any); ok {
			c.Issues = append(c.Issues, decodeIssue(im))
		}
	}
	for _, v := range list(m["deductions"]) {
		dm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		d := Deduction{
			ComponentID: str(dm["component_id"]),
			RuleID:      str(dm["rule_id"]),
			CategoryID:  str(dm["category_id"]),
			Points:      points(dm["points"]),
		}
		if d.ComponentID == "" {
			d.ComponentID = c.ComponentID
		}
		if em, ok := dm["evidence"].(map[string]any); ok {
			ev := decodeEvidence(em)
			d.Evidence = &ev
		}
		c.Deductions = append(c.Deductions, d)
	}
	return c
}

func decodeIssue(m map[string]any) Issue {
	return Issue{
		IssueID:     str(first(m, "issue_id", "id")),
		RuleID:      str(m["rule_id"]),
		Title:       str(first(m, "title", "summary")),
		Description: str(first(m, "description", "detail")),
		Resolved:    boolean(m["resolved"]),
		Evidence:    evidenceList(m["evidence"]),
	}
}

func decodeDriver(m map[string]any) ScoreDriver {
	d := ScoreDriver{
		RuleIDs:  []string{},
		Title:    str(first(m, "title", "summary")),
		Evidence: evidenceList(m["evidence"]),
	}
	for _, v := range list(m["rule_ids"]) {
		if s := str(v); s != "" {
			d.RuleIDs = append(d.RuleIDs, s)
		}
	}
	if s := str(m["rule_id"]); s != "" {
		d.RuleIDs = append(d.RuleIDs, s)
	}
	return d
}

func decodeScore(obj map[string]any) Score {
	s := Score{CategoryDeductions: []models.CategoryScore{}}
	sm, _ := obj["score"].(map[string]any)
	if sm != nil {
		s.Total = optionalInt(first(sm, "total", "total_score"))
		for _, v := range list(sm["category_deductions"]) {
			cm, ok := v.(map[string]any)
			if !ok {
				continue
			}
			s.CategoryDeductions = append(s.CategoryDeductions, models.CategoryScore{
				CategoryID:   str(cm["category_id"]),
				CategoryName: str(cm["category_name"]),
				Deduction:    points(cm["deduction"]),
				MaxDeduction: optionalInt(cm["max_deduction"]),
			})
		}
	}
	if s.Total == nil {
		s.Total = optionalInt(first(obj, "total_score", "score"))
	}
	return s
}

// evidenceList accepts an array of evidence objects, a single object or a bare
// snippet string.
func evidenceList(v any) []models.Evidence {
	out := []models.Evidence{}
	switch x := v.(type) {
	case map[string]any:
		out = append(out, decodeEvidence(x))
	case string:
		if strings.TrimSpace(x) != "" {
			out = append(out, models.Evidence{Snippet: strings.TrimSpace(x)})
		}
	case []any:
		for _, item := range x {
			switch e := item.(type) {
			case map[string]any:
				out = append(out, decodeEvidence(e))
			case string:
				if strings.TrimSpace(e) != "" {
					out = append(out, models.Evidence{Snippet: strings.TrimSpace(e)})
				}
			}
		}
	}
	return out
}

func decodeEvidence(m map[string]any) models.Evidence {
	page := 0
	if p := optionalInt(m["page"]); p != nil {
		page = *p
	}
	return models.Evidence{
		PointID:       str(m["point_id"]),
		ConditionCode: strings.ToUpper(str(m["condition_code"])),
		Page:          page,
		Heading:       str(m["heading"]),
		Source:        str(m["source"]),
		Snippet:       str(m["snippet"]),
		MatchExplain:  str(m["match_explain"]),
		Text:          str(m["text"]),
	}
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func list(v any) []any {
	x, _ := v.([]any)
	return x
}

func str(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func boolean(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	default:
		return false
	}
}

func optionalInt(v any) *int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(f)
	return &n
}

// points coerces a deduction value: negatives and non-numbers become 0 and
// fractions are truncated.
func points(v any) int {
	n := optionalInt(v)
	if n == nil || *n < 0 {
		return 0
	}
	return *n
}
