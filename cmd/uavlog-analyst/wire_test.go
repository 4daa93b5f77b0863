package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/miradorstack/uavlog-analyst/internal/cache"
	"github.com/miradorstack/uavlog-analyst/internal/config"
)

func TestSharedEmbeddingTier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider, closeFn := sharedEmbeddingTier(config.CacheConfig{}, logger)
	closeFn()
	if _, ok := provider.(cache.NoopProvider); !ok {
		t.Fatalf("disabled cache should have no shared tier, got %T", provider)
	}

	provider, closeFn = sharedEmbeddingTier(config.CacheConfig{Enabled: true, MemoryEntries: 32}, logger)
	closeFn()
	if _, ok := provider.(*cache.MemoryProvider); !ok {
		t.Fatalf("enabled cache without an address should be in-process, got %T", provider)
	}
}
