package driven

import (
	"context"
	"time"

	"github.com/keylens/keylens/internal/domain/model"
)

// NotificationRecord is one persisted delivery, as read back from the
// history store.
type NotificationRecord struct {
	ID           int64
	Provider     string
	Container    string
	CredentialID string
	Kind         model.CredentialKind
	Message      string
	ExpiresOn    *time.Time
	SentAt       time.Time
}

// NotificationStore defines the driven port for notification history
// persistence. History is a sink-side concern; the scanning core itself
// keeps no state between cycles.
type NotificationStore interface {
	// Record appends one delivered notification.
	Record(ctx context.Context, n model.Notification) error

	// Recent returns up to limit deliveries, newest first.
	Recent(ctx context.Context, limit int) ([]NotificationRecord, error)
}
