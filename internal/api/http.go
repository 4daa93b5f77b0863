package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// RequestIDHeader carries a per-request identifier, generated when absent.
const RequestIDHeader = "X-Request-ID"

const defaultMaxBodyBytes = 32 << 20

// Analyst is the service behaviour exposed over HTTP and gRPC.
type Analyst interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatResult, error)
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

// HTTPOptions tunes the JSON API.
type HTTPOptions struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
}

type httpHandler struct {
	logger  *slog.Logger
	service Analyst
	maxBody int64
}

// NewHTTPHandler builds the JSON API: POST /chat, POST /analysis (with or
// without trailing slash) and GET /health, wrapped in CORS and request-id
// middleware.
func NewHTTPHandler(logger *slog.Logger, service Analyst, opts HTTPOptions) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &httpHandler{logger: logger, service: service, maxBody: opts.MaxBodyBytes}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", h.chat)
	mux.HandleFunc("POST /chat/{$}", h.chat)
	mux.HandleFunc("POST /analysis", h.analysis)
	mux.HandleFunc("POST /analysis/{$}", h.analysis)
	mux.HandleFunc("GET /health", h.health)

	return withRequestID(logger, withCORS(opts.AllowedOrigins, mux))
}

func (h *httpHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Chat(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.SuggestedQuestions == nil {
		res.SuggestedQuestions = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *httpHandler) analysis(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *httpHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *httpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", w.Header().Get(RequestIDHeader)),
			slog.Any("error", err),
		)
	}
	writeJSON(w, code, errorBody{Error: utils.PublicMessage(err)})
}

// HTTPStatus maps a service error to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func withCORS(allowed []string, next http.Handler) http.Handler {
	wildcard := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			_, ok := set[origin]
			switch {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case ok:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRequestID(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", id),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// HTTPServer wraps an http.Server bound to a listener.
type HTTPServer struct {
	srv      *http.Server
	listener net.Listener
}

// NewHTTPServer listens on addr and serves handler.
func NewHTTPServer(addr string, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &HTTPServer{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown. http.ErrServerClosed is not reported.
func (s *HTTPServer) Start() error {
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	return s.listener.Addr().String()
}
