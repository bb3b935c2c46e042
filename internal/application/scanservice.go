package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// CycleState names the phase a scan cycle is in.
type CycleState string

const (
	StateIdle        CycleState = "idle"
	StateCollecting  CycleState = "collecting"
	StateClassifying CycleState = "classifying"
	StateNotifying   CycleState = "notifying"
)

// CycleSummary describes the most recently completed scan cycle.
type CycleSummary struct {
	CycleID      string
	StartedAt    time.Time
	Duration     time.Duration
	Collected    int
	Noticeworthy int
	Notified     int
	EndedEarly   bool
}

// scanRequest represents a manual scan trigger.
type scanRequest struct {
	done chan error
}

// ScanService drives the recurring expiry scan: it collects from the
// background-eligible sources, classifies the merged records, collapses
// duplicates per credential identity and dispatches one notification per
// survivor. Each tick is a fresh, self-contained attempt.
type ScanService struct {
	aggregator *Aggregator
	sources    []driven.CredentialSource
	broker     *NotificationBroker
	interval   time.Duration
	logger     *slog.Logger
	scanCh     chan scanRequest

	mu    sync.Mutex
	state CycleState
	last  *CycleSummary
}

// NewScanService creates a ScanService over the given background-eligible
// sources. Sources requiring an interactively obtained token must not be
// included; the background context cannot satisfy them.
func NewScanService(
	aggregator *Aggregator,
	sources []driven.CredentialSource,
	broker *NotificationBroker,
	interval time.Duration,
	logger *slog.Logger,
) *ScanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanService{
		aggregator: aggregator,
		sources:    sources,
		broker:     broker,
		interval:   interval,
		logger:     logger,
		scanCh:     make(chan scanRequest),
		state:      StateIdle,
	}
}

// Start begins the scan loop. It runs an immediate cycle, then scans on
// the configured interval, and also serves manual scan requests. Start
// blocks until the context is canceled; an in-flight cycle is abandoned,
// not retried, when that happens.
func (s *ScanService) Start(ctx context.Context) {
	s.scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scan service stopped")
			return
		case <-ticker.C:
			s.scan(ctx)
		case req := <-s.scanCh:
			req.done <- s.scanErr(ctx)
		}
	}
}

// TriggerScan runs one scan cycle outside the regular interval. It blocks
// until the cycle completes or the context is canceled.
func (s *ScanService) TriggerScan(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.scanCh <- scanRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current cycle phase and the summary of the last
// completed cycle (nil before the first completes).
func (s *ScanService) State() (CycleState, *CycleSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.last
}

// scan runs one cycle. Failures never surface beyond this method; fewer
// or zero notifications plus log lines are the only external effect.
func (s *ScanService) scan(ctx context.Context) {
	if err := s.scanErr(ctx); err != nil {
		s.logger.Error("scan cycle ended early", "error", err)
	}
}

func (s *ScanService) scanErr(ctx context.Context) error {
	cycleID := uuid.NewString()
	start := time.Now()
	logger := s.logger.With("cycle_id", cycleID)

	s.setState(StateCollecting)
	defer s.setState(StateIdle)

	records, err := s.aggregator.Collect(ctx, s.sources, ContentIdentity)
	if err != nil {
		// Cancellation mid-cycle: discard and let the next tick retry
		// from scratch.
		s.finishCycle(cycleID, start, 0, 0, 0, true)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("scan collection cancelled", "error", err)
			return err
		}
		logger.Error("scan collection failed", "error", err)
		return err
	}

	s.setState(StateClassifying)
	asOf := time.Now()

	// Tighter key than the aggregator's default: the same logical
	// credential must not surface twice even when provider metadata
	// differs slightly across passes.
	seen := make(map[string]struct{})
	var expiring []model.CredentialRecord
	for _, rec := range records {
		if !Noticeworthy(rec, asOf) {
			continue
		}
		if _, ok := seen[rec.CredentialID]; ok {
			continue
		}
		seen[rec.CredentialID] = struct{}{}
		expiring = append(expiring, rec)
	}

	logger.Info("discovered expiring or expired credentials",
		"collected", len(records),
		"noticeworthy", len(expiring),
	)

	s.setState(StateNotifying)
	var notified int
	for _, rec := range expiring {
		if ctx.Err() != nil {
			s.finishCycle(cycleID, start, len(records), len(expiring), notified, true)
			return ctx.Err()
		}
		s.broker.Notify(ctx, model.Notification{
			Credential: rec,
			Message:    ExpiryMessage(rec, asOf),
		})
		notified++
	}

	s.finishCycle(cycleID, start, len(records), len(expiring), notified, false)
	logger.Info("scan cycle complete",
		"collected", len(records),
		"notified", notified,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (s *ScanService) setState(state CycleState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *ScanService) finishCycle(cycleID string, start time.Time, collected, noticeworthy, notified int, early bool) {
	s.mu.Lock()
	s.last = &CycleSummary{
		CycleID:      cycleID,
		StartedAt:    start,
		Duration:     time.Since(start),
		Collected:    collected,
		Noticeworthy: noticeworthy,
		Notified:     notified,
		EndedEarly:   early,
	}
	s.mu.Unlock()
}
