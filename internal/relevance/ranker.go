// Package relevance ranks telemetry field paths against a natural-language
// question using embedding similarity and an optional rerank pass.
package relevance

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/miradorstack/uavlog-analyst/internal/repo"
	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// Defaults applied when Options leaves a field unset.
const (
	DefaultTopK      = 10
	DefaultThreshold = 0.25
	// poolFactor widens the similarity pool ahead of reranking.
	poolFactor = 3
	// cosineEpsilon guards against zero-norm vectors.
	cosineEpsilon = 1e-8
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error)
	EmbedModel() string
}

// Reranker orders candidate documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]repo.RerankResult, error)
}

// Options controls a single extraction.
type Options struct {
	TopK      int
	Threshold float64
	Rerank    bool
}

// ScoredPath is a field path with its similarity or rerank score.
type ScoredPath struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Result holds the pruned telemetry subset and the ranking that produced it.
type Result struct {
	Fields map[string]any
	Ranked []ScoredPath
}

// Ranker selects the telemetry fields most relevant to a question.
type Ranker struct {
	embedder Embedder
	reranker Reranker
	cache    *EmbeddingCache
	logger   *slog.Logger
}

// NewRanker requires an embedder. reranker and cache may be nil.
func NewRanker(logger *slog.Logger, embedder Embedder, reranker Reranker, cache *EmbeddingCache) (*Ranker, error) {
	if embedder == nil {
		return nil, utils.NotConfigured("relevance.NewRanker", "embedding client required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewEmbeddingCache(512, 0, nil, logger)
	}
	return &Ranker{embedder: embedder, reranker: reranker, cache: cache, logger: logger}, nil
}

// Extract discovers every field path in tree, ranks the paths against
// question and rebuilds a nested mapping of the top-k selections.
func (r *Ranker) Extract(ctx context.Context, tree *telemetry.Tree, question string, opts Options) (Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}

	root := tree.Root()
	paths := telemetry.DiscoverFields(root)
	if len(paths) == 0 {
		return Result{Fields: map[string]any{}}, nil
	}

	pool, err := r.similarityPool(ctx, question, paths, opts.TopK*poolFactor, opts.Threshold)
	if err != nil {
		return Result{}, err
	}

	ranked := pool
	if opts.Rerank && len(pool) > 0 {
		ranked, err = r.rerank(ctx, question, pool, opts.TopK)
		if err != nil {
			return Result{}, err
		}
	} else if len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	selected := make([]string, len(ranked))
	for i, sp := range ranked {
		selected[i] = sp.Path
	}
	r.logger.Debug("relevant fields selected",
		slog.Int("discovered", len(paths)),
		slog.Int("pool", len(pool)),
		slog.Int("selected", len(selected)),
		slog.Bool("rerank", opts.Rerank),
	)
	return Result{Fields: telemetry.Reconstruct(root, selected), Ranked: ranked}, nil
}

func (r *Ranker) similarityPool(ctx context.Context, question string, paths []string, size int, threshold float64) ([]ScoredPath, error) {
	qVecs, err := r.embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	pVecs, err := r.embed(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(qVecs) != 1 || len(pVecs) != len(paths) {
		return nil, utils.Upstream("relevance.Extract", errVectorCount)
	}

	scored := make([]ScoredPath, 0, len(paths))
	for i, p := range paths {
		sim := Cosine(qVecs[0], pVecs[i])
		if sim >= threshold {
			scored = append(scored, ScoredPath{Path: p, Score: sim})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > size {
		scored = scored[:size]
	}
	return scored, nil
}

func (r *Ranker) rerank(ctx context.Context, question string, pool []ScoredPath, topK int) ([]ScoredPath, error) {
	if r.reranker == nil {
		return nil, utils.NotConfigured("relevance.Extract", "rerank requested but no rerank client configured")
	}
	docs := make([]string, len(pool))
	for i, sp := range pool {
		docs[i] = sp.Path
	}
	topN := topK
	if topN > len(docs) {
		topN = len(docs)
	}
	results, err := r.reranker.Rerank(ctx, question, docs, topN)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredPath, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(docs) {
			continue
		}
		out = append(out, ScoredPath{Path: docs[res.Index], Score: res.RelevanceScore})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (r *Ranker) embed(ctx context.Context, texts []string) ([][]float32, error) {
	key := Key(r.embedder.EmbedModel(), repo.InputTypeSearchDocument, texts)
	if vectors, ok := r.cache.Get(ctx, key); ok {
		return vectors, nil
	}
	vectors, err := r.embedder.Embed(ctx, texts, repo.InputTypeSearchDocument)
	if err != nil {
		return nil, err
	}
	r.cache.Put(ctx, key, vectors)
	return vectors, nil
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length are compared over their common prefix.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / ((math.Sqrt(na) + cosineEpsilon) * (math.Sqrt(nb) + cosineEpsilon))
}
