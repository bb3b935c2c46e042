package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// NotificationBroker fans one logical notification out to every
// registered sink. Sink failures are isolated: a failing sink never
// prevents or delays delivery to the others and never fails the overall
// call.
type NotificationBroker struct {
	sinks  []driven.NotificationSink
	logger *slog.Logger
}

// NewNotificationBroker creates a broker over the given sinks.
func NewNotificationBroker(sinks []driven.NotificationSink, logger *slog.Logger) *NotificationBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationBroker{sinks: sinks, logger: logger}
}

// Notify delivers n to every sink concurrently and returns once all
// deliveries have completed or failed. Per-sink errors are logged, not
// propagated.
func (b *NotificationBroker) Notify(ctx context.Context, n model.Notification) {
	var wg sync.WaitGroup
	for _, sink := range b.sinks {
		wg.Add(1)
		go func(sink driven.NotificationSink) {
			defer wg.Done()
			if err := sink.Send(ctx, n); err != nil {
				b.logger.Error("notification delivery failed",
					"sink", fmt.Sprintf("%T", sink),
					"credential", n.Credential.CredentialID,
					"error", err,
				)
			}
		}(sink)
	}
	wg.Wait()
}
