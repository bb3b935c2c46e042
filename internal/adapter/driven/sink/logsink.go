// Package sink implements notification destinations.
package sink

import (
	"context"
	"log/slog"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NotificationSink = (*LogSink)(nil)

// LogSink writes each notification to the structured log. It never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink writing through the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send logs the notification.
func (s *LogSink) Send(_ context.Context, n model.Notification) error {
	s.logger.Warn("credential expiry notice",
		"provider", n.Credential.Provider,
		"container", n.Credential.Container,
		"credential", n.Credential.CredentialID,
		"kind", string(n.Credential.Kind),
		"message", n.Message,
	)
	return nil
}
