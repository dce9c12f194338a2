package monitoring

import (
	"context"
	"log/slog"
)

// SlogSink writes metrics as structured log records.
type SlogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// Write logs m.
func (s SlogSink) Write(ctx context.Context, m Metric) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("trace_id", m.TraceID),
		slog.String("type", string(m.Type)),
		slog.String("name", m.Name),
		slog.Float64("value", m.Value),
		slog.String("status", string(m.Status)),
		slog.Any("metadata", m.Metadata),
	}
	if m.Error != "" {
		attrs = append(attrs, slog.String("error", m.Error))
	}

	logger.LogAttrs(ctx, s.Level, "metric", attrs...)
	return nil
}

// TrackUsage records one user_usage data point for user.
func TrackUsage(r Recorder, user string) {
	_ = OrNop(r).Record(Metric{
		Type:     Usage,
		Name:     UserUsage,
		Value:    1,
		Metadata: map[string]any{"userId": user},
		Status:   StatusSuccess,
	})
}
