package sink

import (
	"context"
	"fmt"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NotificationSink = (*HistorySink)(nil)

// HistorySink persists every delivered notification to the history store.
type HistorySink struct {
	store driven.NotificationStore
}

// NewHistorySink creates a HistorySink writing to the given store.
func NewHistorySink(store driven.NotificationStore) *HistorySink {
	return &HistorySink{store: store}
}

// Send records the notification.
func (s *HistorySink) Send(ctx context.Context, n model.Notification) error {
	if err := s.store.Record(ctx, n); err != nil {
		return fmt.Errorf("record notification history: %w", err)
	}
	return nil
}
