package services

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/miradorstack/uavlog-analyst/internal/metrics"
	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// Route labels used for request metrics.
const (
	RouteChat     = "chat"
	RouteAnalysis = "analysis"
)

// latencyLogEvery is how many successful requests pass between p95 log lines.
const latencyLogEvery = 20

// Engine defines the pipeline behaviour the service fronts.
type Engine interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatResult, error)
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

// AnalystService is the transport-neutral facade shared by the HTTP and
// gRPC surfaces. It records request metrics and latency, logs failures
// with full detail and returns errors unchanged for the transport to map.
type AnalystService struct {
	logger    *slog.Logger
	engine    Engine
	latencies *utils.LatencyTracker
	// successes keeps counting after the latency window is full.
	successes atomic.Int64
}

// NewAnalystService constructs the service facade.
func NewAnalystService(logger *slog.Logger, engine Engine) *AnalystService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalystService{
		logger:    logger,
		engine:    engine,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Chat answers one question.
func (s *AnalystService) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResult, error) {
	if s.engine == nil {
		return models.ChatResult{}, utils.NotConfigured("services.Chat", "pipeline not configured")
	}
	s.logger.Debug("Chat called",
		slog.String("session_id", req.SessionID),
		slog.Bool("telemetry", req.Telemetry != nil),
	)

	start := time.Now()
	result, err := s.engine.Chat(ctx, req)
	s.observe(RouteChat, time.Since(start), err)
	if err != nil {
		return models.ChatResult{}, err
	}
	s.logger.Debug("chat answered", slog.String("route", string(result.Route)), slog.String("session_id", result.SessionID))
	return result, nil
}

// Analyze computes metrics, flags and a relevant field sample.
func (s *AnalystService) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if s.engine == nil {
		return models.AnalysisResult{}, utils.NotConfigured("services.Analyze", "pipeline not configured")
	}

	start := time.Now()
	result, err := s.engine.Analyze(ctx, req)
	s.observe(RouteAnalysis, time.Since(start), err)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}

func (s *AnalystService) observe(route string, duration time.Duration, err error) {
	outcome := Outcome(err)
	metrics.ObserveRequest(route, duration, outcome)

	switch outcome {
	case metrics.OutcomeClientError:
		s.logger.Debug("request rejected", slog.String("route", route), slog.Any("error", err))
		return
	case metrics.OutcomeError:
		s.logger.Error("request failed", slog.String("route", route), slog.Duration("duration", duration), slog.Any("error", err))
		return
	}

	s.latencies.Observe(duration)
	if n := s.successes.Add(1); n%latencyLogEvery == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("request latency",
			slog.Duration("p95", p95),
			slog.Int("samples", s.latencies.Count()),
			slog.Int64("requests", n),
		)
	}
}

// Outcome classifies err for request metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, utils.ErrInvalidInput):
		return metrics.OutcomeClientError
	default:
		return metrics.OutcomeError
	}
}

// LatencyP95 returns the current p95 latency of successful requests.
func (s *AnalystService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
