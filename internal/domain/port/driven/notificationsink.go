package driven

import (
	"context"

	"github.com/keylens/keylens/internal/domain/model"
)

// NotificationSink defines the driven port for one notification
// destination (log, webhook, chat, ticket system). Delivery failures are
// returned to the broker, which isolates them; a sink must never panic
// its way out of Send.
type NotificationSink interface {
	Send(ctx context.Context, n model.Notification) error
}
