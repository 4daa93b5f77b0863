// Command mock-upstream serves canned completion, embedding and rerank
// endpoints so the analyst can run locally without API keys. Point
// UAVLOG_LLM_BASE_URL at http://localhost:8080/openai/v1 and
// UAVLOG_EMBEDDINGS_BASE_URL at http://localhost:8080.
package main

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

const embeddingDims = 64

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

func main() {
	logger := utils.NewLogger(os.Getenv("UAVLOG_LOG_LEVEL"), false)
	addr := os.Getenv("MOCK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, newMux(logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("mock upstream listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /openai/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string        `json:"model"`
			Messages []chatMessage `json:"messages"`
		}
		if !decode(w, r, &req) {
			return
		}
		prompt := ""
		if n := len(req.Messages); n > 0 {
			prompt = req.Messages[n-1].Content
		}
		writeJSON(logger, w, map[string]any{
			"id":      "chatcmpl-" + uuid.NewString(),
			"object":  "chat.completion",
			"model":   req.Model,
			"created": time.Now().Unix(),
			"choices": []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: cannedReply(prompt)},
				FinishReason: "stop",
			}},
		})
	})

	mux.HandleFunc("POST /v1/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts     []string `json:"texts"`
			InputType string   `json:"input_type"`
		}
		if !decode(w, r, &req) {
			return
		}
		vectors := make([][]float32, len(req.Texts))
		for i, text := range req.Texts {
			vectors[i] = hashEmbedding(text)
		}
		writeJSON(logger, w, map[string]any{
			"id":         uuid.NewString(),
			"embeddings": vectors,
		})
	})

	mux.HandleFunc("POST /v1/rerank", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
			TopN      int      `json:"top_n"`
		}
		if !decode(w, r, &req) {
			return
		}
		writeJSON(logger, w, map[string]any{
			"id":      uuid.NewString(),
			"results": rerank(req.Query, req.Documents, req.TopN),
		})
	})
	return mux
}

// cannedReply echoes the question back in the answer/suggestions layout the
// analyst parses.
func cannedReply(prompt string) string {
	question := prompt
	if i := strings.LastIndex(prompt, "User question:"); i >= 0 {
		question = strings.TrimSpace(prompt[i+len("User question:"):])
	}
	if nl := strings.IndexByte(question, '\n'); nl >= 0 {
		question = question[:nl]
	}
	return "<answer>\nMock analysis for: " + question + "\n</answer>\n" +
		"<suggested_questions>\n" +
		"1. What was the maximum altitude?\n" +
		"2. Were there any GPS dropouts?\n" +
		"3. How low did the battery voltage get?\n" +
		"</suggested_questions>"
}

// hashEmbedding buckets lower-cased tokens into a fixed-size unit vector, so
// texts sharing words point in similar directions.
func hashEmbedding(text string) []float32 {
	vec := make([]float64, embeddingDims)
	for _, tok := range tokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := 1.0
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%embeddingDims] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, embeddingDims)
	for i, v := range vec {
		if norm > 0 {
			out[i] = float32(v / norm)
		}
	}
	return out
}

// rerank scores each document by the share of query tokens it contains.
func rerank(query string, documents []string, topN int) []rerankResult {
	want := tokens(query)
	results := make([]rerankResult, len(documents))
	for i, doc := range documents {
		have := make(map[string]struct{})
		for _, tok := range tokens(doc) {
			have[tok] = struct{}{}
		}
		hits := 0
		for _, tok := range want {
			if _, ok := have[tok]; ok {
				hits++
			}
		}
		score := 0.0
		if len(want) > 0 {
			score = float64(hits) / float64(len(want))
		}
		results[i] = rerankResult{Index: i, RelevanceScore: score}
	}
	// insertion sort keeps equal scores in document order
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].RelevanceScore > results[j-1].RelevanceScore; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}
	return results
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode error", slog.Any("error", err))
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
