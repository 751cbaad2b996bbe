package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"validert/internal/models"
)

func testEntry() models.CacheEntry {
	return models.CacheEntry{
		CacheKey:       models.CacheKey{DocumentHash: "H", ScoringModelSHA: "M", PipelineSHA: "P"},
		DetectedPoints: json.RawMessage(`{"version":"1.0","points":[]}`),
		ScoringResult:  json.RawMessage(`{"score_total":90}`),
		ModelOutput:    json.RawMessage(`{"findings":[]}`),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(4)
	require.NoError(t, err)

	e := testEntry()
	require.NoError(t, s.Put(ctx, e))

	got, ok, err := s.Get(ctx, e.CacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(e.DetectedPoints), string(got.DetectedPoints))
	require.Equal(t, string(e.ScoringResult), string(got.ScoringResult))
	require.Equal(t, string(e.ModelOutput), string(got.ModelOutput))

	for _, k := range []models.CacheKey{
		{DocumentHash: "X", ScoringModelSHA: "M", PipelineSHA: "P"},
		{DocumentHash: "H", ScoringModelSHA: "X", PipelineSHA: "P"},
		{DocumentHash: "H", ScoringModelSHA: "M", PipelineSHA: "X"},
		{ScoringModelSHA: "M", PipelineSHA: "P"},
	} {
		_, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		require.False(t, ok, "%+v", k)
	}
}

func TestMemoryStoreUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(4)
	require.NoError(t, err)

	e := testEntry()
	require.NoError(t, s.Put(ctx, e))
	first, _, _ := s.Get(ctx, e.CacheKey)

	e.ScoringResult = json.RawMessage(`{"score_total":91}`)
	require.NoError(t, s.Put(ctx, e))
	second, _, _ := s.Get(ctx, e.CacheKey)

	require.Equal(t, 1, s.Len())
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, `{"score_total":91}`, string(second.ScoringResult))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	e := testEntry()
	require.NoError(t, s.Put(ctx, e))

	got, _, _ := s.Get(ctx, e.CacheKey)
	got.ScoringResult[0] = '['
	again, _, _ := s.Get(ctx, e.CacheKey)
	require.Equal(t, byte('{'), again.ScoringResult[0])
}

func TestPutRejectsIncompleteEntries(t *testing.T) {
	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	e := testEntry()
	e.PipelineSHA = ""
	require.ErrorIs(t, s.Put(context.Background(), e), ErrIncompleteKey)

	e = testEntry()
	e.ModelOutput = nil
	require.Error(t, s.Put(context.Background(), e))
}

type recordingStore struct {
	name    string
	entries map[models.CacheKey]models.CacheEntry
	failPut bool
	log     *[]string
}

func newRecording(name string, log *[]string) *recordingStore {
	return &recordingStore{name: name, entries: map[models.CacheKey]models.CacheEntry{}, log: log}
}

func (r *recordingStore) Get(_ context.Context, k models.CacheKey) (models.CacheEntry, bool, error) {
	e, ok := r.entries[k]
	return e, ok, nil
}

func (r *recordingStore) Put(_ context.Context, e models.CacheEntry) error {
	*r.log = append(*r.log, r.name)
	if r.failPut {
		return errors.New("unavailable")
	}
	r.entries[e.CacheKey] = e
	return nil
}

func TestTieredWritesAuthoritativeFirst(t *testing.T) {
	var log []string
	fast, durable := newRecording("fast", &log), newRecording("durable", &log)
	tiered := NewTiered(fast, nil, durable)

	require.NoError(t, tiered.Put(context.Background(), testEntry()))
	require.Equal(t, []string{"durable", "fast"}, log)
}

func TestTieredFailedDurableWriteLeavesNoPartialEntry(t *testing.T) {
	var log []string
	fast, durable := newRecording("fast", &log), newRecording("durable", &log)
	durable.failPut = true

	err := NewTiered(fast, durable).Put(context.Background(), testEntry())
	require.Error(t, err)
	require.Empty(t, fast.entries)
}

func TestTieredBackfillsFasterTiers(t *testing.T) {
	var log []string
	fast, durable := newRecording("fast", &log), newRecording("durable", &log)
	e := testEntry()
	durable.entries[e.CacheKey] = e

	got, ok, err := NewTiered(fast, durable).Get(context.Background(), e.CacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e, got)
	require.Contains(t, fast.entries, e.CacheKey)

	_, ok, err = NewTiered(fast, durable).Get(context.Background(), models.CacheKey{DocumentHash: "H"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisKey(t *testing.T) {
	require.Equal(t, "validert:analysis:H:M:P", RedisKey(testEntry().CacheKey))
}

func TestRedisEncodingKeepsPayloadBytes(t *testing.T) {
	e := testEntry()
	e.ScoringResult = json.RawMessage("{\n  \"score_total\": 90,\n  \"blockers\": []\n}")
	e.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.UpdatedAt = e.CreatedAt.Add(time.Hour)

	raw, err := encodeEntry(e)
	require.NoError(t, err)
	got, err := decodeEntry(raw)
	require.NoError(t, err)

	require.Equal(t, e.CacheKey, got.CacheKey)
	require.Equal(t, string(e.ScoringResult), string(got.ScoringResult))
	require.Equal(t, string(e.DetectedPoints), string(got.DetectedPoints))
	require.Equal(t, string(e.ModelOutput), string(got.ModelOutput))
	require.True(t, e.UpdatedAt.Equal(got.UpdatedAt))
}
