package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrChannelUnavailable is returned when a message could not be delivered
// after all retry attempts.
var ErrChannelUnavailable = errors.New("delivery channel unavailable")

// Channel is the send capability of a messaging session.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// LogChannel is a Channel that only logs (used when no messaging bridge is
// configured).
type LogChannel struct {
	Logger *slog.Logger
}

func (c *LogChannel) Send(_ context.Context, msg Message) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("message not delivered (no channel configured)",
		"message_id", msg.ID,
		"to", msg.To,
		"preview", msg.PreviewURL != "",
	)
	return nil
}
