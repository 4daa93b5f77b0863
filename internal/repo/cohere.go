package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

const (
	// DefaultCohereBaseURL is the public Cohere API endpoint.
	DefaultCohereBaseURL = "https://api.cohere.com"
	// DefaultEmbedModel is used when no embedding model is configured.
	DefaultEmbedModel = "embed-english-v3.0"
	// DefaultRerankModel is used when no rerank model is configured.
	DefaultRerankModel = "rerank-english-v3.0"
	// InputTypeSearchDocument is the embedding input type used for both
	// questions and field paths.
	InputTypeSearchDocument = "search_document"

	defaultEmbedBatchSize = 96
)

// CohereConfig configures the embedding and rerank client.
type CohereConfig struct {
	BaseURL        string
	APIKey         string
	EmbedModel     string
	RerankModel    string
	EmbedBatchSize int
	Options        ClientOptions
}

// RerankResult is one entry of a rerank response: the position of a document
// in the submitted list and its relevance score.
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// CohereClient calls the Cohere embed and rerank endpoints.
type CohereClient struct {
	caller      *caller
	embedModel  string
	rerankModel string
	batchSize   int
}

// NewCohereClient validates credentials up front so a missing key surfaces at
// startup rather than on the first request.
func NewCohereClient(cfg CohereConfig) (*CohereClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, utils.NotConfigured("repo.NewCohereClient", "COHERE_API_KEY not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCohereBaseURL
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.RerankModel == "" {
		cfg.RerankModel = DefaultRerankModel
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatchSize
	}
	return &CohereClient{
		caller:      newCaller("cohere", cfg.BaseURL, cfg.APIKey, cfg.Options),
		embedModel:  cfg.EmbedModel,
		rerankModel: cfg.RerankModel,
		batchSize:   cfg.EmbedBatchSize,
	}, nil
}

// EmbedModel returns the configured embedding model name.
func (c *CohereClient) EmbedModel() string {
	return c.embedModel
}

// Embed returns one vector per text, in order. Large inputs are split into
// provider-sized batches.
func (c *CohereClient) Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if c == nil {
		return nil, utils.NotConfigured("repo.Embed", "embedding client not initialised")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if inputType == "" {
		inputType = InputTypeSearchDocument
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		payload := map[string]any{
			"texts":      batch,
			"model":      c.embedModel,
			"input_type": inputType,
		}
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := c.caller.postJSON(ctx, "/v1/embed", payload, &response); err != nil {
			return nil, utils.Upstream("repo.Embed", err)
		}
		if len(response.Embeddings) != len(batch) {
			return nil, utils.Upstream("repo.Embed", fmt.Errorf("expected %d embeddings, got %d", len(batch), len(response.Embeddings)))
		}
		vectors = append(vectors, response.Embeddings...)
	}
	return vectors, nil
}

// Rerank orders documents by relevance to query and returns at most topN results.
func (c *CohereClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if c == nil {
		return nil, utils.NotConfigured("repo.Rerank", "rerank client not initialised")
	}
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	payload := map[string]any{
		"model":     c.rerankModel,
		"query":     query,
		"documents": documents,
		"top_n":     topN,
	}
	var response struct {
		Results []RerankResult `json:"results"`
	}
	if err := c.caller.postJSON(ctx, "/v1/rerank", payload, &response); err != nil {
		return nil, utils.Upstream("repo.Rerank", err)
	}

	results := make([]RerankResult, 0, len(response.Results))
	for _, r := range response.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		results = append(results, r)
	}
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}
