package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"validert/internal/util"
)

func loadTestModel(t *testing.T) *ScoringModel {
	t.Helper()
	m, err := LoadFile("testdata/scoring_model.json")
	require.NoError(t, err)
	return m
}

func TestLoadJSON(t *testing.T) {
	m := loadTestModel(t)
	raw, err := os.ReadFile("testdata/scoring_model.json")
	require.NoError(t, err)

	require.Equal(t, util.SHA256Hex(raw), m.SHA256())
	require.Equal(t, string(raw), m.RawText())
	require.Equal(t, "validert-trygghetsscore", m.Info.ModelID)
	require.Equal(t, "1.6", m.Info.Version)
	require.Equal(t, []string{"A", "B", "C", "D", "E"}, m.CategoryOrder)
	require.Equal(t, AggregatePerComponent, m.AggregateLevel)
	require.True(t, m.DeductPerOccurrence)
	require.Equal(t, 100, m.ScoreStart)
	require.Equal(t, 0, m.ScoreFloor)
	require.Equal(t, 100, m.ScoreCeiling)
	require.Equal(t, 95, m.BlockerCeiling)

	limit, ok := m.Cap("B")
	require.True(t, ok)
	require.Equal(t, 30, limit)
	_, ok = m.Cap("E")
	require.False(t, ok, "category without max_deduction is uncapped")

	require.True(t, m.BlocksTopScore("WRONG_TG_LEVEL"))
	require.False(t, m.BlocksTopScore("B_203"))
	require.Len(t, m.Rules(), 9)
}

func TestLoadYAML(t *testing.T) {
	m, err := LoadFile("testdata/scoring_model.yaml")
	require.NoError(t, err)
	require.Equal(t, "2", m.Info.Version)
	require.Equal(t, AggregatePerReport, m.AggregateLevel)
	limit, ok := m.Cap("D")
	require.True(t, ok)
	require.Equal(t, 5, limit)
	require.Equal(t, 100, m.ScoreCeiling)

	raw, err := os.ReadFile("testdata/scoring_model.yaml")
	require.NoError(t, err)
	require.Equal(t, util.SHA256Hex(raw), m.SHA256())
}

func TestLoadRejectsInvalidModels(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"categories": [`,
		"missing mechanics": `{"categories": []}`,
		"missing start":     `{"categories": [], "scoring_mechanics": {}}`,
		"negative cap":      `{"categories": [{"id": "B", "max_deduction": -1}], "scoring_mechanics": {"score_start": 100}}`,
		"unknown level":     `{"categories": [], "scoring_mechanics": {"score_start": 100, "aggregate_level": "per_planet"}}`,
		"floor over top":    `{"categories": [], "scoring_mechanics": {"score_start": 100, "score_floor": 50, "score_ceiling": 40}}`,
		"cap unknown cat":   `{"categories": [], "scoring_mechanics": {"score_start": 100, "category_caps": {"Z": 4}}}`,
		"duplicate cat":     `{"categories": [{"id": "B"}, {"id": "B"}], "scoring_mechanics": {"score_start": 100}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(raw))
			require.ErrorIs(t, err, util.ErrInvalidScoringModel)
		})
	}
	_, err := LoadYAML([]byte("categories: [\n"))
	require.ErrorIs(t, err, util.ErrInvalidScoringModel)
}

func TestParseAggregateLevel(t *testing.T) {
	tests := map[string]AggregateLevel{
		"":                   AggregatePerComponent,
		"bygningsdel":        AggregatePerComponent,
		"per-component":      AggregatePerComponent,
		"rapport":            AggregatePerReport,
		"Per Report":         AggregatePerReport,
		"per_rule":           AggregatePerRule,
		"per-issue-evidence": AggregatePerIssueEvidence,
	}
	for in, want := range tests {
		got, err := ParseAggregateLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCategoryForRule(t *testing.T) {
	m := loadTestModel(t)
	tests := []struct {
		rule string
		want string
		ok   bool
	}{
		{rule: "B_203", want: "B", ok: true},
		{rule: "B.12", want: "B", ok: true},
		{rule: "d_101", want: "D", ok: true},
		{rule: "E", want: "E", ok: true},
		{rule: " C_1 ", want: "C", ok: true},
		{rule: "X_1", ok: false},
		{rule: "ARKAT_MISSING", ok: false},
		{rule: "_B", ok: false},
		{rule: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got, ok := m.CategoryForRule(tt.rule)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCategory(t *testing.T) {
	m := loadTestModel(t)
	got, ok := m.ResolveCategory("c", "B_203")
	require.True(t, ok)
	require.Equal(t, "C", got)

	got, ok = m.ResolveCategory("UNKNOWN", "B_203")
	require.True(t, ok)
	require.Equal(t, "B", got)

	_, ok = m.ResolveCategory("", "ZZ_1")
	require.False(t, ok)
}

func TestImprovementCategoryTexts(t *testing.T) {
	require.Equal(t, "SPERRE ≥96", ImprovementBlocker.Label())
	require.Equal(t, "Økt reklamasjonsrisiko", ImprovementMajor.Consequence())
	require.Equal(t, "Rettssakssårbarhet", ImprovementMinor.Consequence())
	require.Empty(t, ImprovementCategory("").Label())
}
