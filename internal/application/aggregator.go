// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// IdentityPolicy selects the dedup key Collect uses when two records
// denote the same credential.
type IdentityPolicy int

const (
	// ContentIdentity treats records as equal only when every field
	// matches. Default; used by the on-demand web path.
	ContentIdentity IdentityPolicy = iota
	// CredentialIdentity compares the Provider|ContainerID|CredentialID
	// identity string and ignores the remaining fields.
	CredentialIdentity
)

// Aggregator fans a collection request out to independent credential
// sources, fans the partial results back in, and merges, deduplicates and
// orders them. It holds no mutable state; every buffer lives and dies
// with one Collect call.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an Aggregator logging through the given logger.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Collect enumerates every source concurrently and returns the merged,
// deduplicated, sorted records. A source that fails mid-enumeration
// contributes the records obtained before the failure; the failure is
// logged and never surfaced. On cancellation or deadline Collect discards
// all partial buffers and returns ctx.Err() so callers can tell
// "cancelled" from "genuinely empty".
func (a *Aggregator) Collect(ctx context.Context, sources []driven.CredentialSource, policy IdentityPolicy) ([]model.CredentialRecord, error) {
	buffers := make(chan []model.CredentialRecord, len(sources))

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src driven.CredentialSource) {
			defer wg.Done()
			buffers <- a.drain(ctx, src)
		}(src)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(buffers)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Still-running enumerations unwind on their own; their buffers
		// are abandoned.
		return nil, ctx.Err()
	}

	var merged []model.CredentialRecord
	for buf := range buffers {
		merged = append(merged, buf...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deduped := dedupe(merged, policy)
	sortByExpiry(deduped)
	return deduped, nil
}

// drain consumes one source's full sequence into a private buffer.
// Enumeration errors terminate the drain silently: the records obtained
// so far are kept, per the partial-results-over-loud-failure policy.
func (a *Aggregator) drain(ctx context.Context, src driven.CredentialSource) []model.CredentialRecord {
	var buf []model.CredentialRecord
	for rec, err := range src.Enumerate(ctx) {
		if err != nil {
			a.logger.Warn("source enumeration failed, keeping partial results",
				"source", src.Name(),
				"records", len(buf),
				"error", err,
			)
			break
		}
		buf = append(buf, rec)
	}
	return buf
}

// dedupe keeps the first-seen occurrence per dedup key, preserving
// insertion order among survivors.
func dedupe(records []model.CredentialRecord, policy IdentityPolicy) []model.CredentialRecord {
	seen := make(map[any]struct{}, len(records))
	out := make([]model.CredentialRecord, 0, len(records))

	for _, rec := range records {
		key := dedupeKey(rec, policy)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	return out
}

// dedupeKey derives a comparable key for the record under the given
// policy. Metadata is excluded from content identity: the bag is opaque
// to core logic and maps are not comparable.
func dedupeKey(rec model.CredentialRecord, policy IdentityPolicy) any {
	if policy == CredentialIdentity {
		return rec.Identity()
	}

	type contentKey struct {
		provider, container, containerID, credentialID string
		kind                                           model.CredentialKind
		name                                           string
		notBefore, expiresOn                           string
		enabled                                        bool
		credentialURI                                  string
	}

	key := contentKey{
		provider:      rec.Provider,
		container:     rec.Container,
		containerID:   rec.ContainerID,
		credentialID:  rec.CredentialID,
		kind:          rec.Kind,
		name:          rec.Name,
		enabled:       rec.Enabled,
		credentialURI: rec.CredentialURI,
	}
	if rec.NotBefore != nil {
		key.notBefore = rec.NotBefore.UTC().String()
	}
	if rec.ExpiresOn != nil {
		key.expiresOn = rec.ExpiresOn.UTC().String()
	}
	return key
}

// sortByExpiry orders records ascending by ExpiresOn, with absent expiry
// sorting after all present values. The sort is stable, so records tied
// on the key keep their post-dedup insertion order.
func sortByExpiry(records []model.CredentialRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ei, ej := records[i].ExpiresOn, records[j].ExpiresOn
		switch {
		case ei == nil:
			return false
		case ej == nil:
			return true
		default:
			return ei.Before(*ej)
		}
	})
}
