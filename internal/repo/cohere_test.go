package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

func TestNewCohereClientRequiresKey(t *testing.T) {
	_, err := NewCohereClient(CohereConfig{})
	if !errors.Is(err, utils.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCohereEmbedBatches(t *testing.T) {
	var calls int
	client, err := NewCohereClient(CohereConfig{
		BaseURL:        "http://cohere.test",
		APIKey:         "secret",
		EmbedBatchSize: 2,
		Options: ClientOptions{HTTPClient: newTestClient(func(r *http.Request) (*http.Response, error) {
			calls++
			if r.URL.Path != "/v1/embed" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Fatalf("unexpected auth header %q", got)
			}
			var body struct {
				Texts     []string `json:"texts"`
				Model     string   `json:"model"`
				InputType string   `json:"input_type"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Model != DefaultEmbedModel || body.InputType != InputTypeSearchDocument {
				t.Fatalf("unexpected payload %+v", body)
			}
			vectors := make([][]float32, len(body.Texts))
			for i := range body.Texts {
				vectors[i] = []float32{float32(len(body.Texts[i])), 1}
			}
			out, _ := json.Marshal(map[string]any{"embeddings": vectors})
			return jsonResponse(http.StatusOK, string(out)), nil
		})},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	vectors, err := client.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"}, "")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 batched calls, got %d", calls)
	}
	if len(vectors) != 5 || vectors[4][0] != 5 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestCohereEmbedCountMismatch(t *testing.T) {
	client, _ := NewCohereClient(CohereConfig{
		BaseURL: "http://cohere.test",
		APIKey:  "secret",
		Options: ClientOptions{HTTPClient: newTestClient(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"embeddings": [[1, 2]]}`), nil
		})},
	})
	_, err := client.Embed(context.Background(), []string{"a", "b"}, InputTypeSearchDocument)
	if !errors.Is(err, utils.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestCohereRerank(t *testing.T) {
	client, _ := NewCohereClient(CohereConfig{
		BaseURL: "http://cohere.test",
		APIKey:  "secret",
		Options: ClientOptions{HTTPClient: newTestClient(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/v1/rerank" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				Query     string   `json:"query"`
				Documents []string `json:"documents"`
				TopN      int      `json:"top_n"`
				Model     string   `json:"model"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.TopN != 2 || body.Model != DefaultRerankModel || len(body.Documents) != 3 {
				t.Fatalf("unexpected payload %+v", body)
			}
			return jsonResponse(http.StatusOK, `{"results": [
				{"index": 2, "relevance_score": 0.9},
				{"index": 7, "relevance_score": 0.8},
				{"index": 0, "relevance_score": 0.4}
			]}`), nil
		})},
	})

	results, err := client.Rerank(context.Background(), "max altitude", []string{"a.alt", "b", "c.alt"}, 2)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(results) != 2 || results[0].Index != 2 || results[1].Index != 0 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestCallerRetriesServerErrors(t *testing.T) {
	var calls int
	client, _ := NewCohereClient(CohereConfig{
		BaseURL: "http://cohere.test",
		APIKey:  "secret",
		Options: ClientOptions{MaxRetries: 2, HTTPClient: newTestClient(func(r *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return jsonResponse(http.StatusServiceUnavailable, `{"message": "busy"}`), nil
			}
			if calls == 2 {
				return nil, fmt.Errorf("connection reset")
			}
			return jsonResponse(http.StatusOK, `{"embeddings": [[1]]}`), nil
		})},
	})
	client.caller.backoff = noBackoff

	if _, err := client.Embed(context.Background(), []string{"q"}, ""); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCallerDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	client, _ := NewCohereClient(CohereConfig{
		BaseURL: "http://cohere.test",
		APIKey:  "secret",
		Options: ClientOptions{MaxRetries: 3, HTTPClient: newTestClient(func(r *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(http.StatusUnauthorized, `{"message": "invalid api token"}`), nil
		})},
	})
	client.caller.backoff = noBackoff

	_, err := client.Embed(context.Background(), []string{"q"}, "")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestCallerBreakerOpens(t *testing.T) {
	var calls int
	client, _ := NewCohereClient(CohereConfig{
		BaseURL: "http://cohere.test",
		APIKey:  "secret",
		Options: ClientOptions{BreakerFailures: 2, HTTPClient: newTestClient(func(r *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(http.StatusBadGateway, ""), nil
		})},
	})

	for i := 0; i < 3; i++ {
		_, _ = client.Embed(context.Background(), []string{"q"}, "")
	}
	if calls != 2 {
		t.Fatalf("expected breaker to stop the third call, transport saw %d", calls)
	}
}
