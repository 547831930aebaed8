// Package notify is the push boundary to the user's messenger.
package notify

import (
	"context"
	"log/slog"
)

// Notifier pushes a message to a user identified by their messenger id.
// Delivery failures are reported, not retried here.
type Notifier interface {
	Send(ctx context.Context, externalID int64, text string) error
}

// LogNotifier writes messages to the log instead of a messenger. Used in
// development and in tests.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, externalID int64, text string) error {
	slog.Info("notification", slog.Int64("external_id", externalID), slog.String("text", text))
	return nil
}
