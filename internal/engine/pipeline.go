package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/miradorstack/uavlog-analyst/internal/conversation"
	"github.com/miradorstack/uavlog-analyst/internal/extractors"
	"github.com/miradorstack/uavlog-analyst/internal/flight"
	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/patterns"
	"github.com/miradorstack/uavlog-analyst/internal/relevance"
	"github.com/miradorstack/uavlog-analyst/internal/repo"
	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// DefaultAnalysisQuery is ranked against the fields when /analysis has no hint.
const DefaultAnalysisQuery = "flight overview: altitude, speed, attitude, battery, GPS satellites"

// Completer defines the language model behaviour used by the pipeline.
type Completer interface {
	Complete(ctx context.Context, req repo.CompletionRequest) (string, error)
}

// FieldRanker selects the telemetry fields relevant to a question.
type FieldRanker interface {
	Extract(ctx context.Context, tree *telemetry.Tree, question string, opts relevance.Options) (relevance.Result, error)
}

type routeParams struct {
	topK        int
	rerank      bool
	temperature float64
	maxTokens   int
}

var (
	anomalyRoute  = routeParams{topK: 25, rerank: true, temperature: 0.2, maxTokens: 512}
	metricRoute   = routeParams{topK: 15, rerank: true, temperature: 0.4, maxTokens: 400}
	generalRoute  = routeParams{temperature: 0.4, maxTokens: 400}
	analysisRoute = routeParams{topK: 25}
)

// Pipeline orchestrates chat turns and one-shot analyses over a flight log.
type Pipeline struct {
	logger     *slog.Logger
	llm        Completer
	ranker     FieldRanker
	intents    *IntentClassifier
	history    *conversation.Store
	aggregator *flight.Aggregator
	detector   *extractors.Detector
	miner      *patterns.Miner
	threshold  float64
}

// NewPipeline constructs a pipeline. llm and ranker may be nil for offline
// use, in which case the routes that need them report ErrNotConfigured.
func NewPipeline(
	logger *slog.Logger,
	llm Completer,
	ranker FieldRanker,
	intents *IntentClassifier,
	history *conversation.Store,
	aggregator *flight.Aggregator,
	detector *extractors.Detector,
	miner *patterns.Miner,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if intents == nil {
		intents, _ = NewIntentClassifier(IntentPatterns{})
	}
	if history == nil {
		history = conversation.NewStore(logger, conversation.Options{})
	}
	if aggregator == nil {
		aggregator = flight.NewAggregator(logger)
	}
	if detector == nil {
		detector = extractors.NewDetector(extractors.DefaultThresholds())
	}
	if miner == nil {
		miner = patterns.NewMiner(logger, nil)
	}
	return &Pipeline{
		logger:     logger,
		llm:        llm,
		ranker:     ranker,
		intents:    intents,
		history:    history,
		aggregator: aggregator,
		detector:   detector,
		miner:      miner,
		threshold:  relevance.DefaultThreshold,
	}
}

// WithSimilarityThreshold overrides the ranking similarity floor.
func (p *Pipeline) WithSimilarityThreshold(th float64) *Pipeline {
	if th > 0 {
		p.threshold = th
	}
	return p
}

// Chat answers one question, routing on intent and the presence of telemetry.
func (p *Pipeline) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return models.ChatResult{}, utils.InvalidInput("engine.Chat", "question must not be empty")
	}
	if p.llm == nil {
		return models.ChatResult{}, utils.NotConfigured("engine.Chat", "language model client not configured")
	}

	sessionID := conversation.SessionID(req.SessionID)
	recent := p.history.Tail(sessionID, historyTurns)
	p.history.Append(sessionID, models.Turn{Role: models.RoleUser, Content: question})

	var tree *telemetry.Tree
	if req.Telemetry != nil {
		tree = telemetry.FromValue(req.Telemetry)
	}

	route := models.RouteGeneral
	switch {
	case tree != nil && p.intents.IsAnomaly(question):
		route = models.RouteAnomaly
	case tree != nil && p.intents.IsTelemetry(question):
		route = models.RouteMetric
	}
	p.logger.Debug("chat routed", slog.String("route", string(route)), slog.String("session_id", sessionID))

	var (
		prompt string
		params routeParams
		err    error
	)
	switch route {
	case models.RouteAnomaly:
		params = anomalyRoute
		prompt, err = p.anomalyPrompt(ctx, tree, question)
	case models.RouteMetric:
		params = metricRoute
		prompt, err = p.metricPrompt(ctx, tree, question)
		prompt = InjectHistory(prompt, recent)
	default:
		params = generalRoute
		prompt = InjectHistory(BuildGeneralPrompt(question), recent)
	}
	if err != nil {
		return models.ChatResult{}, err
	}

	raw, err := p.llm.Complete(ctx, repo.CompletionRequest{
		Prompt:      prompt,
		Temperature: params.temperature,
		MaxTokens:   params.maxTokens,
	})
	if err != nil {
		return models.ChatResult{}, err
	}

	parsed := ParseResponse(raw)
	p.history.Append(sessionID, models.Turn{Role: models.RoleAssistant, Content: parsed.Answer})

	return models.ChatResult{
		Answer:             parsed.Answer,
		SuggestedQuestions: parsed.Suggestions,
		SessionID:          sessionID,
		Route:              route,
	}, nil
}

func (p *Pipeline) anomalyPrompt(ctx context.Context, tree *telemetry.Tree, question string) (string, error) {
	extracted, err := p.extract(ctx, tree, question, anomalyRoute)
	if err != nil {
		return "", err
	}
	report := p.Inspect(ctx, tree)
	return BuildAnomalyPrompt(question, extracted, report.Metrics, report.Anomalies, report.AnomalySummary), nil
}

func (p *Pipeline) metricPrompt(ctx context.Context, tree *telemetry.Tree, question string) (string, error) {
	extracted, err := p.extract(ctx, tree, question, metricRoute)
	if err != nil {
		return "", err
	}
	return BuildMetricPrompt(question, extracted, p.aggregator.Compute(tree)), nil
}

func (p *Pipeline) extract(ctx context.Context, tree *telemetry.Tree, question string, params routeParams) (map[string]any, error) {
	if p.ranker == nil {
		return nil, utils.NotConfigured("engine.extract", "relevance ranker not configured")
	}
	res, err := p.ranker.Extract(ctx, tree, question, relevance.Options{
		TopK:      params.topK,
		Threshold: p.threshold,
		Rerank:    params.rerank,
	})
	if err != nil {
		return nil, err
	}
	return res.Fields, nil
}

// Analyze computes metrics, flags and a relevant field sample without
// calling the language model.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if len(req.Telemetry) == 0 {
		return models.AnalysisResult{}, utils.InvalidInput("engine.Analyze", "telemetry payload missing")
	}
	tree := telemetry.FromValue(req.Telemetry)

	query := strings.TrimSpace(req.Hint)
	if query == "" {
		query = DefaultAnalysisQuery
	}
	extracted, err := p.extract(ctx, tree, query, analysisRoute)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	result := p.Inspect(ctx, tree)
	result.ExtractedSample = extracted
	return result, nil
}

// Inspect runs the metric catalogue and anomaly detectors over the whole
// log. It needs no external service.
func (p *Pipeline) Inspect(ctx context.Context, tree *telemetry.Tree) models.AnalysisResult {
	flags := p.detector.Detect(tree)
	if flags == nil {
		flags = []models.AnomalyFlag{}
	}
	summary := p.miner.Mine(ctx, flags)
	if summary == nil {
		summary = []models.FlagSummary{}
	}
	return models.AnalysisResult{
		Metrics:         p.aggregator.Compute(tree),
		ExtractedSample: map[string]any{},
		Anomalies:       flags,
		AnomalySummary:  summary,
	}
}
