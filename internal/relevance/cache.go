package relevance

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/miradorstack/uavlog-analyst/internal/cache"
	"github.com/miradorstack/uavlog-analyst/internal/metrics"
)

// EmbeddingCache memoizes embedding batches keyed by a content hash of the
// model, input type and exact texts. The local tier is a bounded LRU; an
// optional shared tier (Valkey) lets replicas reuse each other's vectors.
type EmbeddingCache struct {
	local  *cache.LRU[[][]float32]
	shared    cache.Provider
	sharedTTL time.Duration
	logger    *slog.Logger
}

// NewEmbeddingCache builds a cache of up to size batches. shared may be nil.
func NewEmbeddingCache(size int, ttl time.Duration, shared cache.Provider, logger *slog.Logger) *EmbeddingCache {
	if shared == nil {
		shared = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingCache{
		local:     cache.NewLRU[[][]float32](size, ttl),
		shared:    shared,
		sharedTTL: ttl,
		logger:    logger,
	}
}

// WithSharedTTL sets how long entries live in the shared tier. Non-positive
// values keep the local TTL.
func (c *EmbeddingCache) WithSharedTTL(ttl time.Duration) *EmbeddingCache {
	if ttl > 0 {
		c.sharedTTL = ttl
	}
	return c
}

// Key hashes the batch identity. Texts are length-prefixed so that
// ("ab","c") and ("a","bc") never collide.
func Key(model, inputType string, texts []string) string {
	h := sha256.New()
	var n [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	write(model)
	write(inputType)
	for _, t := range texts {
		write(t)
	}
	return "uavlog:embed:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns cached vectors for key, consulting the shared tier on a local miss.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([][]float32, bool) {
	if vectors, ok := c.local.Get(key); ok {
		metrics.ObserveEmbeddingCache("hit")
		return vectors, true
	}
	var vectors [][]float32
	if err := cache.GetJSON(ctx, c.shared, key, &vectors); err == nil {
		c.local.Set(key, vectors)
		metrics.ObserveEmbeddingCache("shared_hit")
		return vectors, true
	}
	metrics.ObserveEmbeddingCache("miss")
	return nil, false
}

// Put stores vectors in both tiers. Shared-tier failures are logged only.
func (c *EmbeddingCache) Put(ctx context.Context, key string, vectors [][]float32) {
	c.local.Set(key, vectors)
	if err := cache.SetJSON(ctx, c.shared, key, vectors, c.sharedTTL); err != nil {
		c.logger.Debug("shared embedding cache write failed", slog.Any("error", err))
	}
}

// Len returns the number of locally cached batches.
func (c *EmbeddingCache) Len() int {
	return c.local.Len()
}
