package patterns

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

// Sink receives the summaries produced for one flight log.
type Sink interface {
	RecordSummaries(ctx context.Context, summaries []models.FlagSummary) error
}

// Miner condenses per-sample anomaly flags into one summary per feature and detector.
type Miner struct {
	sink   Sink
	logger *slog.Logger
}

// NewMiner constructs a Miner; sink may be nil.
func NewMiner(logger *slog.Logger, sink Sink) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{sink: sink, logger: logger}
}

// Mine summarizes flags and forwards the result to the sink. Sink failures
// are logged and do not fail the call.
func (m *Miner) Mine(ctx context.Context, flags []models.AnomalyFlag) []models.FlagSummary {
	summaries := Summarize(flags)
	if summaries == nil {
		return nil
	}
	if m.sink != nil {
		if err := m.sink.RecordSummaries(ctx, summaries); err != nil {
			m.logger.Warn("flag summary sink failed", slog.Any("error", err))
		}
	}
	return summaries
}

// Summarize groups flags by (feature, pattern) and orders the groups by flag
// count, then by first occurrence. It returns nil for no flags.
func Summarize(flags []models.AnomalyFlag) []models.FlagSummary {
	if len(flags) == 0 {
		return nil
	}

	type key struct {
		feature string
		pattern models.Pattern
	}
	groups := make(map[key]*models.FlagSummary)
	order := make([]key, 0)
	for _, f := range flags {
		k := key{f.Feature, f.Pattern}
		agg, ok := groups[k]
		if !ok {
			agg = &models.FlagSummary{
				Feature:    f.Feature,
				Pattern:    f.Pattern,
				FirstIndex: f.Index,
				LastIndex:  f.Index,
				Peak:       f.Value,
			}
			groups[k] = agg
			order = append(order, k)
		}
		agg.Count++
		if f.Index < agg.FirstIndex {
			agg.FirstIndex = f.Index
		}
		if f.Index > agg.LastIndex {
			agg.LastIndex = f.Index
		}
		if moreExtreme(f.Pattern, f.Value, agg.Peak) {
			agg.Peak = f.Value
		}
	}

	summaries := make([]models.FlagSummary, 0, len(order))
	for _, k := range order {
		summaries = append(summaries, *groups[k])
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].FirstIndex < summaries[j].FirstIndex
	})
	return summaries
}

// moreExtreme reports whether candidate is worse than current. Floor checks
// get worse as values fall; everything else as magnitude grows.
func moreExtreme(p models.Pattern, candidate, current float64) bool {
	switch p {
	case models.PatternLowSatellites, models.PatternVoltageSag:
		return candidate < current
	default:
		return math.Abs(candidate) > math.Abs(current)
	}
}
