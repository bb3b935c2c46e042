// Package driven declares the ports the application core consumes.
package driven

import (
	"context"
	"iter"

	"github.com/keylens/keylens/internal/domain/model"
)

// CredentialSource defines the driven port for one external credential
// backend. Implementations stream records lazily and must respect
// cancellation of the supplied context.
type CredentialSource interface {
	// Name is a stable identifier for logs and diagnostics.
	Name() string

	// Enumerate starts a fresh, finite enumeration of the backend's
	// credentials. The sequence yields (record, nil) for each credential
	// and at most one trailing (zero, err) when enumeration cannot
	// continue; records yielded before the error remain valid. Expected
	// "no access" conditions end the sequence without an error.
	Enumerate(ctx context.Context) iter.Seq2[model.CredentialRecord, error]

	// RequiredPermissions lists the external permissions this source
	// needs, as human-readable strings. Display/documentation only;
	// never evaluated programmatically.
	RequiredPermissions() []string
}
