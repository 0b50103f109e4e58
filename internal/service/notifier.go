package service

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers side-channel notifications. Deliveries are best-effort:
// callers never fail an operation because a notification could not be sent.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, message string)
}

// LogNotifier writes notifications to the structured log. It stands in for a
// real mail or push channel.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, userID, subject, message string) {
	n.logger.Info("notification dispatched",
		zap.String("user_id", userID),
		zap.String("subject", subject),
		zap.String("message", message),
	)
}
