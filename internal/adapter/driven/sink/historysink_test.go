package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

type recordingStore struct {
	recorded []model.Notification
	err      error
}

func (s *recordingStore) Record(_ context.Context, n model.Notification) error {
	s.recorded = append(s.recorded, n)
	return s.err
}

func (s *recordingStore) Recent(_ context.Context, _ int) ([]driven.NotificationRecord, error) {
	return nil, nil
}

func TestHistorySink_RecordsNotification(t *testing.T) {
	store := &recordingStore{}

	err := NewHistorySink(store).Send(context.Background(), notice(nil))

	require.NoError(t, err)
	require.Len(t, store.recorded, 1)
	assert.Equal(t, "key-id-1", store.recorded[0].Credential.CredentialID)
}

func TestHistorySink_WrapsStoreError(t *testing.T) {
	storeErr := errors.New("disk full")
	store := &recordingStore{err: storeErr}

	err := NewHistorySink(store).Send(context.Background(), notice(nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestLogSink_NeverFails(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewLogSink(logger).Send(context.Background(), notice(nil))

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "credential expiry notice")
	assert.Contains(t, buf.String(), "key-id-1")
}
