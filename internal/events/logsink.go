package events

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
)

// LogSink writes events to the structured log. Used when no broker is
// configured and as the default in tests.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("module", "event_sink")}
}

func (s *LogSink) Publish(ctx context.Context, event *Event) error {
	s.logger.Info(ctx, "event", "id", event.ID, "type", event.Type, "source", event.Source, "data", event.Data)
	return nil
}
