package patterns

import (
	"context"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, summaries []models.FlagSummary) error

// RecordSummaries implements Sink.
func (f SinkFunc) RecordSummaries(ctx context.Context, summaries []models.FlagSummary) error {
	return f(ctx, summaries)
}
