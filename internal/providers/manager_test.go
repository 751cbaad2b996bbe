package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"validert/internal/analysis"
	"validert/internal/config"
)

func TestManagerOrdersMockLast(t *testing.T) {
	m, err := NewManager(config.Config{LLMProviders: "mock|groq|openai:gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, 3, m.LLMCount())
	require.Equal(t, []int{1, 2, 0}, m.PreferredLLMOrder())

	_, ref, ok := m.FindLLMProviderByName("openai")
	require.True(t, ok)
	require.Equal(t, "gpt-4o", ref.Model)
}

func TestManagerRejectsUnknownProvider(t *testing.T) {
	_, err := NewManager(config.Config{LLMProviders: "bard"})
	require.Error(t, err)
}

func TestMockProviderFlagsTG3Sections(t *testing.T) {
	prompt := strings.Join([]string{
		"1 Tak",
		"Taket er i god stand. TG1",
		"2.1 Våtrom",
		"Fuktmerker rundt sluk.",
		"Tilstandsgrad TG3",
	}, "\n")
	resp, info, err := NewMockProvider().Generate(context.Background(), GenerateRequest{Operation: "analyze", Prompt: prompt})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)

	out, err := analysis.Parse(resp.Text)
	require.NoError(t, err)
	require.Len(t, out.Findings, 1)
	require.Equal(t, "2.1", out.Findings[0].PointID)
	require.Equal(t, "ARKAT_MISSING", out.Findings[0].Issues[0].RuleID)
	require.Equal(t, 5, out.Findings[0].Deductions[0].Points)
	require.Equal(t, 95, *out.Score.Total)
}

func TestMockProviderStatesTotalForCleanReport(t *testing.T) {
	resp, _, err := NewMockProvider().Generate(context.Background(), GenerateRequest{Prompt: "1 Tak\nTaket er i god stand. TG1"})
	require.NoError(t, err)
	out, err := analysis.Parse(resp.Text)
	require.NoError(t, err)
	require.Empty(t, out.Findings)
	require.Equal(t, 100, *out.Score.Total)
}
