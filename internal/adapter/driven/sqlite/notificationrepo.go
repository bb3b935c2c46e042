package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NotificationStore = (*NotificationRepo)(nil)

// NotificationRepo is the SQLite implementation of the NotificationStore
// port interface.
type NotificationRepo struct {
	db *DB
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Record appends one delivered notification.
func (r *NotificationRepo) Record(ctx context.Context, n model.Notification) error {
	const query = `INSERT INTO notifications (provider, container, credential_id, kind, message, expires_on)
		VALUES (?, ?, ?, ?, ?, ?)`

	var expiresOn any
	if n.Credential.ExpiresOn != nil {
		expiresOn = n.Credential.ExpiresOn.UTC().Format(time.RFC3339)
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		n.Credential.Provider,
		n.Credential.Container,
		n.Credential.CredentialID,
		string(n.Credential.Kind),
		n.Message,
		expiresOn,
	)
	if err != nil {
		return fmt.Errorf("record notification for %q: %w", n.Credential.CredentialID, err)
	}
	return nil
}

// Recent returns up to limit deliveries, newest first.
func (r *NotificationRepo) Recent(ctx context.Context, limit int) ([]driven.NotificationRecord, error) {
	const query = `SELECT id, provider, container, credential_id, kind, message, expires_on, sent_at
		FROM notifications ORDER BY sent_at DESC, id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var records []driven.NotificationRecord
	for rows.Next() {
		var rec driven.NotificationRecord
		var kind string
		var expiresOn *string
		var sentAt string
		if err := rows.Scan(&rec.ID, &rec.Provider, &rec.Container, &rec.CredentialID, &kind, &rec.Message, &expiresOn, &sentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.Kind = model.CredentialKind(kind)

		if expiresOn != nil {
			t, err := parseTime(*expiresOn)
			if err != nil {
				return nil, fmt.Errorf("parse expires_on for notification %d: %w", rec.ID, err)
			}
			rec.ExpiresOn = &t
		}

		rec.SentAt, err = parseTime(sentAt)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at for notification %d: %w", rec.ID, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return records, nil
}

// parseTime handles both RFC3339 values written by this repo and the
// "YYYY-MM-DD HH:MM:SS" form SQLite's CURRENT_TIMESTAMP produces.
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
	}
	return t.UTC(), nil
}
