package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleOutput = "Her er analysen:\n```json\n" + `{
  "findings": [
    {
      "component_id": "vatrom-1",
      "title": "Våtrom",
      "point_id": "2.1",
      "condition_code": "tg3",
      "issues": [
        {"issue_id": "i1", "rule_id": "B_203", "title": "Mangler fuktmåling",
         "evidence": {"page": "2", "text": "Fukt i sluk", "source": "local"}}
      ],
      "deductions": [
        {"rule_id": "B_203", "points": "10"},
        {"rule_id": "B_204", "points": -4},
        {"rule_id": "B_205", "points": "mye"},
        {"rule_id": "B_206", "points": 2.7}
      ]
    }
  ],
  "top_score_drivers": [{"rule_id": "B_203", "title": "Våtrom"}],
  "score": {"total": 88},
  "meta": {"model": "gpt-test"}
}` + "\n```"

func TestParseTolerant(t *testing.T) {
	out, err := Parse(sampleOutput)
	require.NoError(t, err)
	require.Len(t, out.Findings, 1)

	c := out.Findings[0]
	require.Equal(t, "TG3", c.ConditionCode)
	require.Len(t, c.Issues, 1)
	require.Len(t, c.Issues[0].Evidence, 1)
	require.Equal(t, 2, c.Issues[0].Evidence[0].Page)
	require.Equal(t, "Fukt i sluk", c.Issues[0].Evidence[0].Text)

	require.Len(t, c.Deductions, 4)
	require.Equal(t, []int{10, 0, 0, 2}, []int{c.Deductions[0].Points, c.Deductions[1].Points, c.Deductions[2].Points, c.Deductions[3].Points})
	require.Equal(t, "vatrom-1", c.Deductions[0].ComponentID)

	require.Equal(t, []string{"B_203"}, out.TopScoreDrivers[0].RuleIDs)
	require.NotNil(t, out.Score.Total)
	require.Equal(t, 88, *out.Score.Total)
	require.Equal(t, "gpt-test", out.Meta["model"])
}

func TestParseDefaultsMissingFields(t *testing.T) {
	out, err := Parse(`{"findings": [{"title": "Tak"}]}`)
	require.NoError(t, err)
	require.NotNil(t, out.TopScoreDrivers)
	require.NotNil(t, out.Meta)
	require.NotNil(t, out.Findings[0].Issues)
	require.NotNil(t, out.Findings[0].Deductions)
	require.Nil(t, out.Score.Total)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	for _, field := range []string{`"findings":null`, `"issues":null`, `"deductions":null`, `"top_score_drivers":null`, `"meta":null`, `"category_deductions":null`} {
		require.NotContains(t, string(b), field)
	}
}

func TestParseRepairsBrokenJSON(t *testing.T) {
	out, err := Parse(`{"findings": [{"component_id": "tak", "issues": [],}], "meta": {"a": 1}`)
	require.NoError(t, err)
	require.Len(t, out.Findings, 1)
	require.Equal(t, "tak", out.Findings[0].ComponentID)
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "beklager, jeg kan ikke", "[1,2,3]"} {
		_, err := Parse(raw)
		require.ErrorIs(t, err, ErrUnusableOutput, raw)
	}
}

func TestParseRoundTripIsStable(t *testing.T) {
	out, err := Parse(sampleOutput)
	require.NoError(t, err)
	first, err := json.Marshal(out)
	require.NoError(t, err)

	again, err := Parse(string(first))
	require.NoError(t, err)
	second, err := json.Marshal(again)
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
}

func TestCloneIsDeep(t *testing.T) {
	out, err := Parse(sampleOutput)
	require.NoError(t, err)
	c := out.Clone()
	c.Findings[0].Issues[0].Evidence[0].Snippet = "endret"
	*c.Score.Total = 1
	require.Empty(t, out.Findings[0].Issues[0].Evidence[0].Snippet)
	require.Equal(t, 88, *out.Score.Total)
}
