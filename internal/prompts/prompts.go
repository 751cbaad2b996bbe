package prompts

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const SystemPrompt = `You are a quality reviewer for Norwegian building condition reports (tilstandsrapporter).
Assess the report against the rule context that follows.
Do not invent findings that the report text does not support.

Output STRICT JSON with this schema:
{
  "findings": [
    {
      "component_id": "string",
      "title": "building part as named in the report",
      "point_id": "report heading number, e.g. 2.3",
      "condition_code": "TG0|TG1|TG2|TG3|TGIU",
      "issues": [
        {"issue_id": "string", "rule_id": "string", "title": "string", "description": "string",
         "resolved": false,
         "evidence": [{"point_id": "", "condition_code": "", "page": 1, "heading": "",
                       "source": "LOCAL|SUMMARY", "snippet": "verbatim text", "match_explain": ""}]}
      ],
      "deductions": [{"rule_id": "string", "category_id": "string", "points": 0}]
    }
  ],
  "top_score_drivers": [{"rule_ids": ["string"], "title": "string", "evidence": []}],
  "score": {"total": null},
  "meta": {}
}
`

const truncationMarker = "[... midtdel av rapporten utelatt for å spare tokens ...]"

// ReportMeta is the submission metadata placed above the report text.
type ReportMeta struct {
	ReportSystem string
	BuildingYear int
	Filename     string
}

// TokenCounter counts tokens in a prompt.
type TokenCounter func(string) int

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens uses the cl100k_base encoding and falls back to ApproxTokens when the
// encoding cannot be loaded.
func CountTokens(s string) int {
	encOnce.Do(func() {
		if e, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = e
		}
	})
	if enc == nil {
		return ApproxTokens(s)
	}
	return len(enc.Encode(s, nil, nil))
}

// ApproxTokens assumes four bytes per token.
func ApproxTokens(s string) int {
	return len(s) / 4
}

// BuildUserPrompt renders the rule context followed by the report text. Reports over
// the token budget keep their opening and closing parts.
func BuildUserPrompt(ctx Context, meta ReportMeta, reportText string, maxTokens int, count TokenCounter) string {
	if count == nil {
		count = CountTokens
	}
	var b strings.Builder
	b.WriteString(ctx.Render())
	b.WriteString("\n\n===== RAPPORT =====\n")
	if meta.Filename != "" {
		b.WriteString("Fil: " + meta.Filename + "\n")
	}
	if meta.ReportSystem != "" {
		b.WriteString("Rapportsystem: " + meta.ReportSystem + "\n")
	}
	if meta.BuildingYear > 0 {
		b.WriteString("Byggeår: " + strconv.Itoa(meta.BuildingYear) + "\n")
	}
	b.WriteString("\n")
	header := b.String()

	if maxTokens > 0 {
		budget := maxTokens - count(header)
		if budget < 0 {
			budget = 0
		}
		if count(reportText) > budget {
			reportText = TruncateMiddle(reportText, budget*4)
		}
	}
	return header + reportText
}

// TruncateMiddle keeps 60% of maxChars from the start and 40% from the end of text.
func TruncateMiddle(text string, maxChars int) string {
	r := []rune(text)
	if maxChars <= 0 || len(r) <= maxChars {
		return text
	}
	head := maxChars * 6 / 10
	tail := maxChars - head
	return string(r[:head]) + "\n\n" + truncationMarker + "\n\n" + string(r[len(r)-tail:])
}
