package analysis

import "validert/internal/models"

// ModelOutput is the normalized analysis returned by the model collaborator. Every
// slice and map is non-nil after Parse.
type ModelOutput struct {
	Findings        []Component    `json:"findings"`
	TopScoreDrivers []ScoreDriver  `json:"top_score_drivers"`
	Score           Score          `json:"score"`
	Meta            map[string]any `json:"meta"`
}

type Component struct {
	ComponentID   string      `json:"component_id"`
	Title         string      `json:"title"`
	PointID       string      `json:"point_id"`
	ConditionCode string      `json:"condition_code"`
	Issues        []Issue     `json:"issues"`
	Deductions    []Deduction `json:"deductions"`
}

type Issue struct {
	IssueID     string            `json:"issue_id"`
	RuleID      string            `json:"rule_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Resolved    bool              `json:"resolved"`
	Evidence    []models.Evidence `json:"evidence"`
}

type Deduction struct {
	ComponentID string           `json:"component_id"`
	RuleID      string           `json:"rule_id"`
	CategoryID  string           `json:"category_id"`
	Points      int              `json:"points"`
	Evidence    *models.Evidence `json:"evidence,omitempty"`
}

type ScoreDriver struct {
	RuleIDs  []string          `json:"rule_ids"`
	Title    string            `json:"title"`
	Evidence []models.Evidence `json:"evidence"`
}

type Score struct {
	Total              *int                   `json:"total"`
	CategoryDeductions []models.CategoryScore `json:"category_deductions"`
}

// Empty is the output used when the model returned nothing usable for a field.
func Empty() ModelOutput {
	return ModelOutput{
		Findings:        []Component{},
		TopScoreDrivers: []ScoreDriver{},
		Score:           Score{CategoryDeductions: []models.CategoryScore{}},
		Meta:            map[string]any{},
	}
}

// Clone returns a deep copy so stages can work on their own copy of the output.
func (o ModelOutput) Clone() ModelOutput {
	c := Empty()
	for _, comp := range o.Findings {
		cc := comp
		cc.Issues = make([]Issue, len(comp.Issues))
		for i, is := range comp.Issues {
			is.Evidence = append([]models.Evidence{}, is.Evidence...)
			cc.Issues[i] = is
		}
		cc.Deductions = make([]Deduction, len(comp.Deductions))
		for i, d := range comp.Deductions {
			if d.Evidence != nil {
				ev := *d.Evidence
				d.Evidence = &ev
			}
			cc.Deductions[i] = d
		}
		c.Findings = append(c.Findings, cc)
	}
	for _, d := range o.TopScoreDrivers {
		d.RuleIDs = append([]string{}, d.RuleIDs...)
		d.Evidence = append([]models.Evidence{}, d.Evidence...)
		c.TopScoreDrivers = append(c.TopScoreDrivers, d)
	}
	if o.Score.Total != nil {
		t := *o.Score.Total
		c.Score.Total = &t
	}
	for _, cs := range o.Score.CategoryDeductions {
		if cs.MaxDeduction != nil {
			m := *cs.MaxDeduction
			cs.MaxDeduction = &m
		}
		c.Score.CategoryDeductions = append(c.Score.CategoryDeductions, cs)
	}
	for k, v := range o.Meta {
		c.Meta[k] = v
	}
	return c
}
