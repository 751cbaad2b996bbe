package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"validert/internal/analysis"
	"validert/internal/cache"
	"validert/internal/document"
	"validert/internal/models"
	"validert/internal/prompts"
	"validert/internal/registry"
	"validert/internal/util"
)

const testModel = `{
  "model": "test", "version": "2",
  "categories": [
    {"id": "B", "name": "Bygningsdeler", "max_deduction": 20},
    {"id": "D", "name": "Dokumentasjon", "max_deduction": 10}
  ],
  "scoring_mechanics": {"score_start": 100, "score_floor": 0, "score_ceiling": 100,
    "aggregate_level": "bygningsdel", "deduct_per_occurrence": true},
  "rules": [
    {"id": "B_203", "category": "VESENTLIG"},
    {"id": "WRONG_TG_LEVEL", "category": "SPERRE_96"}
  ]
}`

const rawOutput = "```json\n" + `{
  "findings": [
    {"component_id": "2.1", "title": "Våtrom", "point_id": "2.1", "condition_code": "TG3",
     "issues": [{"issue_id": "i1", "rule_id": "B_203", "title": "Fuktmåling mangler", "resolved": false}],
     "deductions": [
       {"rule_id": "B_203", "points": 12},
       {"rule_id": "B_203", "points": 7}
     ]}
  ],
  "top_score_drivers": [{"rule_ids": ["B_203"], "title": "Fukt i våtrom"}],
  "meta": {"provider": "mock"}
}` + "\n```"

func twoPageReport() string {
	return document.Join([]string{
		"1 Tak\nTaket er tekket med betongstein.\nTG1",
		"2.1 Våtrom\nFuktmerker ved sluk. TG3\nFuktmåling ikke utført.",
	})
}

func newPipeline(t *testing.T, store cache.Store) *Pipeline {
	t.Helper()
	m, err := registry.Load([]byte(testModel))
	require.NoError(t, err)
	p, err := New(Deps{
		Model:   m,
		Context: prompts.Context{Sections: []prompts.Section{{Name: "SYSTEM", Text: "svar med JSON"}}},
		Store:   store,
	})
	require.NoError(t, err)
	return p
}

func memoryStore(t *testing.T) *cache.MemoryStore {
	t.Helper()
	s, err := cache.NewMemoryStore(8)
	require.NoError(t, err)
	return s
}

func input() Input {
	return Input{ReportID: "r1", SourceFilename: "rapport.pdf", Method: "text", Text: twoPageReport(), RawModelOutput: rawOutput}
}

func TestProcessTwoPageReport(t *testing.T) {
	res, err := newPipeline(t, nil).Process(context.Background(), input())
	require.NoError(t, err)

	pts := res.DetectedPoints.Points
	require.Len(t, pts, 2)
	require.Equal(t, "1", pts[0].NativeLabel)
	require.Equal(t, "2.1", pts[1].NativeLabel)
	require.Equal(t, "TG3", pts[1].ConditionCode)
	require.Equal(t, 2, pts[1].PageStart)
	require.Equal(t, 2, pts[1].PageEnd)

	require.Equal(t, 88, *res.Scoring.ScoreTotal)
	require.Len(t, res.Scoring.Deductions, 1)
	require.Equal(t, "B", res.Scoring.Deductions[0].CategoryID)
	require.Equal(t, pts[1].SpanHash, res.Scoring.Deductions[0].EvidenceSpanHash)

	issue := res.ModelOutput.Findings[0].Issues[0]
	require.NotEmpty(t, issue.Evidence)
	for _, ev := range issue.Evidence {
		require.NotEmpty(t, ev.Snippet)
		require.GreaterOrEqual(t, ev.Page, 1)
	}
	require.Equal(t, 2, issue.Evidence[0].Page)

	require.Equal(t, "r1", res.Feedback.ReportID)
	require.Equal(t, res.Key.DocumentHash, res.Feedback.DocumentHash)
	require.Len(t, res.Feedback.PointsOverview, 2)
	require.Equal(t, "deduction", res.Feedback.PointsOverview[1].Status)
	require.Equal(t, "ok", res.Feedback.PointsOverview[0].Status)
	require.False(t, res.FromCache)
}

func TestProcessIsDeterministic(t *testing.T) {
	a, err := newPipeline(t, nil).Process(context.Background(), input())
	require.NoError(t, err)
	b, err := newPipeline(t, nil).Process(context.Background(), input())
	require.NoError(t, err)

	ea, err := Entry(a)
	require.NoError(t, err)
	eb, err := Entry(b)
	require.NoError(t, err)
	require.Equal(t, string(ea.DetectedPoints), string(eb.DetectedPoints))
	require.Equal(t, string(ea.ScoringResult), string(eb.ScoringResult))
	require.Equal(t, string(ea.ModelOutput), string(eb.ModelOutput))

	fa, _ := json.Marshal(a.Feedback)
	fb, _ := json.Marshal(b.Feedback)
	require.Equal(t, string(fa), string(fb))
}

func TestLookupReplaysStoredAnalysis(t *testing.T) {
	store := memoryStore(t)
	p := newPipeline(t, store)

	_, ok, err := p.Lookup(context.Background(), "r1", twoPageReport())
	require.NoError(t, err)
	require.False(t, ok)

	live, err := p.Process(context.Background(), input())
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	cached, ok, err := p.Lookup(context.Background(), "r1", twoPageReport())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cached.FromCache)
	require.Equal(t, live.Key, cached.Key)

	lf, _ := json.Marshal(live.Feedback)
	cf, _ := json.Marshal(cached.Feedback)
	require.JSONEq(t, string(lf), string(cf))

	_, ok, err = p.Lookup(context.Background(), "r1", twoPageReport()+"\nendret")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIdentityChangesWithPromptContext(t *testing.T) {
	p := newPipeline(t, nil)
	q, err := New(Deps{
		Model:   p.Model(),
		Context: prompts.Context{Sections: []prompts.Section{{Name: "SYSTEM", Text: "ny versjon"}}},
	})
	require.NoError(t, err)

	a, b := p.Identity("tekst"), q.Identity("tekst")
	require.Equal(t, a.DocumentHash, b.DocumentHash)
	require.Equal(t, a.ScoringModelSHA, b.ScoringModelSHA)
	require.NotEqual(t, a.PipelineSHA, b.PipelineSHA)
}

func TestUnusableOutputWritesNothing(t *testing.T) {
	store := memoryStore(t)
	in := input()
	in.RawModelOutput = "Beklager, jeg kan ikke vurdere denne rapporten."

	_, err := newPipeline(t, store).Process(context.Background(), in)
	require.ErrorIs(t, err, analysis.ErrUnusableOutput)
	require.True(t, Failed(err))
	require.Equal(t, 0, store.Len())
}

func TestOutputWithoutScoreFails(t *testing.T) {
	for name, raw := range map[string]string{
		"empty object":     `{}`,
		"unknown prefixes": `{"findings":[{"component_id":"tak","deductions":[{"rule_id":"XYZ_1","points":40}]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := memoryStore(t)
			in := input()
			in.RawModelOutput = raw

			_, err := newPipeline(t, store).Process(context.Background(), in)
			require.ErrorIs(t, err, util.ErrNoScore)
			require.True(t, Failed(err))
			require.Equal(t, 0, store.Len())
		})
	}
}

func TestModelTotalKeptWithItsBreakdown(t *testing.T) {
	in := input()
	in.RawModelOutput = `{"score":{"total":72,"category_deductions":[{"category_id":"B","deduction":28}]}}`

	res, err := newPipeline(t, memoryStore(t)).Process(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 72, *res.Scoring.ScoreTotal)
	require.False(t, res.Scoring.ScoreComputed)
	require.Equal(t, 28, res.Scoring.ScoreByCategory[0].Deduction)
	require.Equal(t, 72, *res.Feedback.Score.Total)
	require.Equal(t, 28, res.Feedback.Score.CategoryDeductions[0].Deduction)
}

type failingStore struct{}

func (failingStore) Get(context.Context, models.CacheKey) (models.CacheEntry, bool, error) {
	return models.CacheEntry{}, false, errors.New("connection refused")
}

func (failingStore) Put(context.Context, models.CacheEntry) error {
	return errors.New("connection refused")
}

func TestStoreErrorsAreNotFailures(t *testing.T) {
	p := newPipeline(t, failingStore{})

	_, _, err := p.Lookup(context.Background(), "r1", twoPageReport())
	require.Error(t, err)
	require.False(t, Failed(err))

	_, err = p.Process(context.Background(), input())
	require.Error(t, err)
	require.False(t, Failed(err))
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}
