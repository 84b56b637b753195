// ABOUTME: Logging adapter that records deliveries without sending them
// ABOUTME: Used for local development and demo deployments

package channel

import (
	"context"
	"log/slog"
)

// LogAdapter logs every delivery and always succeeds.
type LogAdapter struct {
	channel string
	logger  *slog.Logger
}

// NewLogAdapter creates a LogAdapter for channel.
func NewLogAdapter(channel string, logger *slog.Logger) *LogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAdapter{
		channel: channel,
		logger:  logger.With("component", "log-channel", "channel", channel),
	}
}

func (a *LogAdapter) Deliver(ctx context.Context, recipientID, body string) error {
	a.logger.Info("outbound message", "recipient", recipientID, "bytes", len(body))
	return nil
}
