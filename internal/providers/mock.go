package providers

import (
	"context"
	"encoding/json"
	"strings"

	"validert/internal/points"
	"validert/internal/util"
)

// MockProvider answers without any network call. It flags every heading whose
// section mentions TG3 as missing cause and consequence, which is enough to drive
// the whole scoring path in development.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	type evidence struct {
		Snippet string `json:"snippet"`
	}
	type issue struct {
		IssueID  string     `json:"issue_id"`
		RuleID   string     `json:"rule_id"`
		Title    string     `json:"title"`
		Resolved bool       `json:"resolved"`
		Evidence []evidence `json:"evidence"`
	}
	type deduction struct {
		RuleID     string `json:"rule_id"`
		CategoryID string `json:"category_id"`
		Points     int    `json:"points"`
	}
	type component struct {
		ComponentID   string      `json:"component_id"`
		Title         string      `json:"title"`
		PointID       string      `json:"point_id"`
		ConditionCode string      `json:"condition_code"`
		Issues        []issue     `json:"issues"`
		Deductions    []deduction `json:"deductions"`
	}
	findings := []component{}
	seen := map[string]bool{}
	var label, title string
	for _, raw := range strings.Split(req.Prompt, "\n") {
		l := points.ClassifyLine(raw)
		if l.Kind == points.LineHeading {
			label, title = l.Label, l.Title
		}
		if label == "" || seen[label] || points.ConditionCode(raw) != "TG3" {
			continue
		}
		seen[label] = true
		findings = append(findings, component{
			ComponentID:   label,
			Title:         title,
			PointID:       label,
			ConditionCode: "TG3",
			Issues: []issue{{
				IssueID:  "mock-" + label,
				RuleID:   "ARKAT_MISSING",
				Title:    "Årsak og konsekvens mangler for TG3",
				Evidence: []evidence{},
			}},
			Deductions: []deduction{{RuleID: "ARKAT_MISSING", CategoryID: "B", Points: 5}},
		})
	}
	// A clean report has no deductions to score from, so the mock states its total.
	total := max(100-5*len(findings), 0)
	body, err := json.Marshal(map[string]any{
		"findings":          findings,
		"top_score_drivers": []any{},
		"score":             map[string]any{"total": total, "category_deductions": []any{}},
		"meta": map[string]any{
			"provider":      "mock",
			"operation":     req.Operation,
			"prompt_sha256": util.SHA256HexString(req.Prompt),
		},
	})
	if err != nil {
		return GenerateResponse{}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, err
	}
	return GenerateResponse{Text: string(body), RequestID: "mock"}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, nil
}
