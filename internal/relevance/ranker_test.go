package relevance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/uavlog-analyst/internal/cache"
	"github.com/miradorstack/uavlog-analyst/internal/repo"
	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) EmbedModel() string { return "fake-embed" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{0.1, 1}
	}
	return out, nil
}

type fakeReranker struct {
	results []repo.RerankResult
	docs    []string
	topN    int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]repo.RerankResult, error) {
	f.docs = documents
	f.topN = topN
	return f.results, nil
}

const altitudePath = "messages.GLOBAL_POSITION_INT.alt"

func sampleTree() *telemetry.Tree {
	return telemetry.FromValue(map[string]any{
		"messages": map[string]any{
			"GLOBAL_POSITION_INT": map[string]any{
				"alt": []any{1.0, 2.0},
				"vx":  []any{0.0, 1.0},
			},
			"GPS_RAW_INT": map[string]any{
				"satellites_visible": []any{8.0},
			},
		},
	})
}

func sampleEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"what was the max altitude?":              {1, 0},
		altitudePath:                              {1, 0},
		"messages.GLOBAL_POSITION_INT.vx":         {0.8, 0.6},
		"messages.GPS_RAW_INT.satellites_visible": {0, 1},
	}}
}

func TestNewRankerRequiresEmbedder(t *testing.T) {
	_, err := NewRanker(nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrNotConfigured))
}

func TestExtractSelectsTopKBySimilarity(t *testing.T) {
	r, err := NewRanker(nil, sampleEmbedder(), nil, nil)
	require.NoError(t, err)

	res, err := r.Extract(context.Background(), sampleTree(), "what was the max altitude?", Options{TopK: 1})
	require.NoError(t, err)

	require.Len(t, res.Ranked, 1)
	assert.Equal(t, altitudePath, res.Ranked[0].Path)
	assert.InDelta(t, 1.0, res.Ranked[0].Score, 1e-6)
	assert.Equal(t, map[string]any{
		"messages": map[string]any{
			"GLOBAL_POSITION_INT": map[string]any{"alt": []any{1.0, 2.0}},
		},
	}, res.Fields)
}

func TestExtractAppliesThreshold(t *testing.T) {
	r, err := NewRanker(nil, sampleEmbedder(), nil, nil)
	require.NoError(t, err)

	res, err := r.Extract(context.Background(), sampleTree(), "what was the max altitude?", Options{TopK: 10})
	require.NoError(t, err)

	paths := make([]string, 0, len(res.Ranked))
	for _, sp := range res.Ranked {
		paths = append(paths, sp.Path)
		assert.GreaterOrEqual(t, sp.Score, DefaultThreshold)
	}
	assert.Equal(t, []string{altitudePath, "messages.GLOBAL_POSITION_INT.vx"}, paths)
	assert.NotContains(t, res.Fields["messages"], "GPS_RAW_INT")
}

func TestExtractReranksCandidatePool(t *testing.T) {
	rr := &fakeReranker{results: []repo.RerankResult{
		{Index: 1, RelevanceScore: 0.9},
		{Index: 7, RelevanceScore: 0.8},
		{Index: 0, RelevanceScore: 0.1},
	}}
	r, err := NewRanker(nil, sampleEmbedder(), rr, nil)
	require.NoError(t, err)

	res, err := r.Extract(context.Background(), sampleTree(), "what was the max altitude?", Options{TopK: 1, Rerank: true})
	require.NoError(t, err)

	assert.Equal(t, []string{altitudePath, "messages.GLOBAL_POSITION_INT.vx"}, rr.docs)
	assert.Equal(t, 1, rr.topN)
	require.Len(t, res.Ranked, 1)
	assert.Equal(t, "messages.GLOBAL_POSITION_INT.vx", res.Ranked[0].Path)
	assert.InDelta(t, 0.9, res.Ranked[0].Score, 1e-9)
}

func TestExtractRerankWithoutClientIsNotConfigured(t *testing.T) {
	r, err := NewRanker(nil, sampleEmbedder(), nil, nil)
	require.NoError(t, err)

	_, err = r.Extract(context.Background(), sampleTree(), "what was the max altitude?", Options{Rerank: true})
	assert.True(t, errors.Is(err, utils.ErrNotConfigured))
}

func TestExtractEmptyTelemetry(t *testing.T) {
	emb := sampleEmbedder()
	r, err := NewRanker(nil, emb, nil, nil)
	require.NoError(t, err)

	res, err := r.Extract(context.Background(), telemetry.NewTree(nil), "anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Fields)
	assert.Zero(t, emb.calls)
}

func TestExtractPropagatesEmbedError(t *testing.T) {
	emb := &fakeEmbedder{err: utils.Upstream("test", errors.New("boom"))}
	r, err := NewRanker(nil, emb, nil, nil)
	require.NoError(t, err)

	_, err = r.Extract(context.Background(), sampleTree(), "q", Options{})
	assert.True(t, errors.Is(err, utils.ErrUpstream))
}

func TestExtractReusesCachedEmbeddings(t *testing.T) {
	emb := sampleEmbedder()
	ec := NewEmbeddingCache(8, time.Minute, nil, nil)
	r, err := NewRanker(nil, emb, nil, ec)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := r.Extract(context.Background(), sampleTree(), "what was the max altitude?", Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, emb.calls)
	assert.Equal(t, 2, ec.Len())
}

func TestEmbeddingCacheUsesSharedTier(t *testing.T) {
	shared := cache.NewMemoryProvider(16)
	first := NewEmbeddingCache(4, time.Minute, shared, nil)
	second := NewEmbeddingCache(4, time.Minute, shared, nil)

	key := Key("m", "search_document", []string{"a"})
	first.Put(context.Background(), key, [][]float32{{1, 2}})

	got, ok := second.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, [][]float32{{1, 2}}, got)
	assert.Equal(t, 1, second.Len())
}

func TestEmbeddingCacheSharedTTL(t *testing.T) {
	now := time.Unix(0, 0)
	shared := cache.NewMemoryProvider(16)
	shared.SetClock(func() time.Time { return now })

	writer := NewEmbeddingCache(4, time.Minute, shared, nil).WithSharedTTL(time.Hour)
	key := Key("m", "search_document", []string{"a"})
	writer.Put(context.Background(), key, [][]float32{{1}})

	now = now.Add(30 * time.Minute)
	_, ok := NewEmbeddingCache(4, time.Minute, shared, nil).Get(context.Background(), key)
	assert.True(t, ok, "shared entry should outlive the local ttl")

	now = now.Add(31 * time.Minute)
	_, ok = NewEmbeddingCache(4, time.Minute, shared, nil).Get(context.Background(), key)
	assert.False(t, ok, "shared entry should expire after its own ttl")
}

func TestKeyIsLengthPrefixed(t *testing.T) {
	assert.NotEqual(t, Key("m", "t", []string{"ab", "c"}), Key("m", "t", []string{"a", "bc"}))
	assert.Equal(t, Key("m", "t", []string{"x"}), Key("m", "t", []string{"x"}))
	assert.NotEqual(t, Key("m1", "t", []string{"x"}), Key("m2", "t", []string{"x"}))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{3, 4}, []float32{6, 8}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.False(t, math.IsNaN(Cosine([]float32{0, 0}, []float32{0, 0})))
}
