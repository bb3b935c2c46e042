package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keylens/keylens/internal/application"
	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

type recordingSink struct {
	mu       sync.Mutex
	received []model.Notification
	err      error
}

func (s *recordingSink) Send(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestNotify_FansOutToAllSinks(t *testing.T) {
	sinks := []*recordingSink{{}, {}, {}}
	broker := application.NewNotificationBroker([]driven.NotificationSink{sinks[0], sinks[1], sinks[2]}, nil)

	n := model.Notification{
		Credential: model.CredentialRecord{CredentialID: "cred-1"},
		Message:    "Credential 'cred-1' in 'vault' expires in 7 days on 2024-06-08.",
	}
	broker.Notify(context.Background(), n)

	for i, sink := range sinks {
		assert.Equal(t, 1, sink.count(), "sink %d should have received the notification", i)
	}
}

func TestNotify_SinkFailureIsIsolated(t *testing.T) {
	sinks := []*recordingSink{{}, {err: errors.New("smtp down")}, {}}
	broker := application.NewNotificationBroker([]driven.NotificationSink{sinks[0], sinks[1], sinks[2]}, nil)

	for range 3 {
		broker.Notify(context.Background(), model.Notification{
			Credential: model.CredentialRecord{CredentialID: "cred-1"},
		})
	}

	assert.Equal(t, 3, sinks[0].count(), "sink before the failing one receives every notification")
	assert.Equal(t, 3, sinks[2].count(), "sink after the failing one receives every notification")
}

func TestNotify_NoSinks(t *testing.T) {
	broker := application.NewNotificationBroker(nil, nil)
	// Must complete without blocking or panicking.
	broker.Notify(context.Background(), model.Notification{})
}
