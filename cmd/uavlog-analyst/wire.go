package main

import (
	"log/slog"

	"github.com/miradorstack/uavlog-analyst/internal/cache"
	"github.com/miradorstack/uavlog-analyst/internal/config"
	"github.com/miradorstack/uavlog-analyst/internal/conversation"
	"github.com/miradorstack/uavlog-analyst/internal/engine"
	"github.com/miradorstack/uavlog-analyst/internal/extractors"
	"github.com/miradorstack/uavlog-analyst/internal/flight"
	"github.com/miradorstack/uavlog-analyst/internal/metrics"
	"github.com/miradorstack/uavlog-analyst/internal/patterns"
	"github.com/miradorstack/uavlog-analyst/internal/relevance"
	"github.com/miradorstack/uavlog-analyst/internal/repo"
)

// components holds everything built from a Config. close releases the
// shared cache connection, if any.
type components struct {
	pipeline *engine.Pipeline
	history  *conversation.Store
	close    func()
}

type wireOptions struct {
	llm    bool
	ranker bool
}

func wire(cfg *config.Config, logger *slog.Logger, opts wireOptions) (*components, error) {
	closeFn := func() {}

	var llm engine.Completer
	if opts.llm {
		client, err := repo.NewLLMClient(repo.LLMConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Options: cfg.LLM.Options(),
		})
		if err != nil {
			return nil, err
		}
		llm = client
	}

	var ranker engine.FieldRanker
	if opts.ranker {
		cohere, err := repo.NewCohereClient(repo.CohereConfig{
			BaseURL:        cfg.Embeddings.BaseURL,
			APIKey:         cfg.Embeddings.APIKey,
			EmbedModel:     cfg.Embeddings.EmbedModel,
			RerankModel:    cfg.Embeddings.RerankModel,
			EmbedBatchSize: cfg.Embeddings.BatchSize,
			Options:        cfg.Embeddings.Options(),
		})
		if err != nil {
			return nil, err
		}

		shared, closeShared := sharedEmbeddingTier(cfg.Cache, logger)
		closeFn = closeShared

		embeddings := relevance.NewEmbeddingCache(cfg.Relevance.CacheSize, cfg.Relevance.CacheTTL, shared, logger).
			WithSharedTTL(cfg.Cache.EmbeddingTTL)
		r, err := relevance.NewRanker(logger, cohere, cohere, embeddings)
		if err != nil {
			closeFn()
			return nil, err
		}
		ranker = r
	}

	intents, err := engine.LoadIntentClassifier(cfg.Intents.Path, logger)
	if err != nil {
		closeFn()
		return nil, err
	}

	history := conversation.NewStore(logger, conversation.Options{
		MaxTurns:    cfg.Conversation.MaxTurns,
		TTL:         cfg.Conversation.TTL,
		MaxSessions: cfg.Conversation.MaxSessions,
	})

	pipeline := engine.NewPipeline(
		logger,
		llm,
		ranker,
		intents,
		history,
		flight.NewAggregator(logger),
		extractors.NewDetector(cfg.Detector),
		patterns.NewMiner(logger, patterns.SinkFunc(metrics.RecordFlagSummaries)),
	).WithSimilarityThreshold(cfg.Relevance.Threshold)

	return &components{pipeline: pipeline, history: history, close: closeFn}, nil
}

// sharedEmbeddingTier picks the second embedding-cache tier: Valkey when an
// address is configured, an in-process store when caching is enabled without
// one, and nothing otherwise. An unreachable Valkey degrades to no tier.
func sharedEmbeddingTier(cfg config.CacheConfig, logger *slog.Logger) (cache.Provider, func()) {
	noop := func() {}
	if !cfg.Enabled {
		return cache.NoopProvider{}, noop
	}
	if cfg.Addr == "" {
		logger.Info("using in-process shared embedding cache", slog.Int("entries", cfg.MemoryEntries))
		return cache.NewMemoryProvider(cfg.MemoryEntries), noop
	}
	provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("valkey cache unavailable", slog.Any("error", err))
		return cache.NoopProvider{}, noop
	}
	return provider, func() { _ = provider.Close() }
}
