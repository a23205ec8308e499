package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes events to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, events ...Event) error {
	for _, e := range events {
		l.logger.Info("bridge event", zap.String("type", e.Type()), zap.Any("event", e))
	}
	return nil
}
