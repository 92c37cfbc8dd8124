package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/progress"
)

// LogSink writes one structured line per event at debug level, and run and
// target milestones at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("count", evt.Count),
			zap.Duration("dur", evt.Dur),
		}
		if evt.Target != "" {
			fields = append(fields, zap.String("target", evt.Target))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("listing_url", evt.URL), zap.Int("worker", evt.Worker))
		}
		if evt.Status != "" {
			fields = append(fields, zap.String("status", string(evt.Status)))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageListingDone, progress.StageBatchDone:
			s.logger.Debug("progress event", fields...)
		case progress.StageTargetFailed:
			s.logger.Warn("progress event", fields...)
		default:
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
