package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keylens/keylens/internal/application"
	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// runOneCycle starts a ScanService with a long interval, waits for the
// immediate startup cycle, then triggers one deterministic cycle and
// shuts the service down.
func runOneCycle(t *testing.T, sources []driven.CredentialSource, sink *recordingSink) {
	t.Helper()

	broker := application.NewNotificationBroker([]driven.NotificationSink{sink}, nil)
	svc := application.NewScanService(application.NewAggregator(nil), sources, broker, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	// Let the immediate startup cycle drain, then reset the sink so the
	// triggered cycle is observed in isolation.
	time.Sleep(50 * time.Millisecond)
	sink.mu.Lock()
	sink.received = nil
	sink.mu.Unlock()

	require.NoError(t, svc.TriggerScan(ctx))

	cancel()
	<-done
}

func daysFromNow(days int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, days)
	return &t
}

func TestScan_NotifiesOnExpiringCredentials(t *testing.T) {
	src := &stubSource{name: "src", records: []model.CredentialRecord{
		expiring("expiring-soon", daysFromNow(2)),
		expiring("expired", daysFromNow(-5)),
		expiring("healthy", daysFromNow(200)),
		expiring("no-expiry", nil),
	}}

	sink := &recordingSink{}
	runOneCycle(t, []driven.CredentialSource{src}, sink)

	require.Equal(t, 2, sink.count())

	ids := make(map[string]bool)
	for _, n := range sink.received {
		ids[n.Credential.CredentialID] = true
		assert.NotEmpty(t, n.Message)
	}
	assert.True(t, ids["expiring-soon"])
	assert.True(t, ids["expired"])
}

func TestScan_DedupsByCredentialID(t *testing.T) {
	// Same logical credential surfaced twice with diverging display
	// fields must collapse to exactly one notification per cycle.
	a := expiring("shared-id", daysFromNow(1))
	b := a
	b.Name = "renamed"
	b.Metadata = map[string]any{"tenant": "other"}

	src := &stubSource{name: "src", records: []model.CredentialRecord{a, b}}

	sink := &recordingSink{}
	runOneCycle(t, []driven.CredentialSource{src}, sink)

	assert.Equal(t, 1, sink.count())
}

func TestScan_SourceFailureStillNotifiesOthers(t *testing.T) {
	failing := &stubSource{
		name:    "failing",
		records: []model.CredentialRecord{expiring("from-failing", daysFromNow(2))},
		err:     assert.AnError,
	}
	healthy := &stubSource{name: "healthy", records: []model.CredentialRecord{
		expiring("from-healthy", daysFromNow(3)),
	}}

	sink := &recordingSink{}
	runOneCycle(t, []driven.CredentialSource{failing, healthy}, sink)

	assert.Equal(t, 2, sink.count(), "pre-failure records and the healthy source both notify")
}

func TestScan_StateReturnsToIdle(t *testing.T) {
	src := &stubSource{name: "src", records: []model.CredentialRecord{
		expiring("expired", daysFromNow(-1)),
	}}

	sink := &recordingSink{}
	broker := application.NewNotificationBroker([]driven.NotificationSink{sink}, nil)
	svc := application.NewScanService(application.NewAggregator(nil), []driven.CredentialSource{src}, broker, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, svc.TriggerScan(ctx))

	state, last := svc.State()
	assert.Equal(t, application.StateIdle, state)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Collected)
	assert.Equal(t, 1, last.Notified)
	assert.False(t, last.EndedEarly)
	assert.NotEmpty(t, last.CycleID)

	cancel()
	<-done
}
