package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

const (
	// DefaultLLMBaseURL points at Groq's OpenAI-compatible endpoint.
	DefaultLLMBaseURL = "https://api.groq.com/openai/v1"
	// DefaultLLMModel is used when no model is configured.
	DefaultLLMModel = "llama3-70b-8192"
)

// LLMConfig configures the chat completion client.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Options ClientOptions
}

// CompletionRequest is a single-prompt completion call.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// LLMClient calls an OpenAI-compatible /chat/completions endpoint.
type LLMClient struct {
	caller *caller
	model  string
}

// NewLLMClient validates credentials up front so a missing key surfaces at startup.
func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, utils.NotConfigured("repo.NewLLMClient", "GROQ_API_KEY not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	return &LLMClient{
		caller: newCaller("llm", cfg.BaseURL, cfg.APIKey, cfg.Options),
		model:  cfg.Model,
	}, nil
}

// Model returns the configured model name.
func (c *LLMClient) Model() string {
	return c.model
}

// Complete sends the prompt as a single user message and returns the trimmed reply.
func (c *LLMClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c == nil {
		return "", utils.NotConfigured("repo.Complete", "language model client not initialised")
	}
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	var response struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := c.caller.postJSON(ctx, "/chat/completions", payload, &response); err != nil {
		return "", utils.Upstream("repo.Complete", err)
	}
	if len(response.Choices) == 0 {
		return "", utils.Upstream("repo.Complete", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
