// Package model holds the domain types shared by every layer.
package model

import "time"

// CredentialKind classifies a credential record. The set is closed;
// consumers branch on it but never extend it at runtime.
type CredentialKind string

const (
	KindSecret      CredentialKind = "secret"
	KindKey         CredentialKind = "key"
	KindCertificate CredentialKind = "certificate"
	KindPassword    CredentialKind = "password"
)

// CredentialRecord is the normalized unit every credential source produces
// and every consumer reads. Provider, Container, ContainerID and
// CredentialID are always non-nil (empty string when the backend has no
// value). Records are immutable once produced: the aggregation pipeline
// reorders, filters and deduplicates but never mutates fields.
type CredentialRecord struct {
	// Provider identifies the backend family ("Azure.KeyVault", "Azure.EntraId").
	Provider string
	// Container is the human-readable grouping the credential lives in
	// (subscription/vault name, app registration display name).
	Container string
	// ContainerID is the machine-stable identifier of that grouping
	// (vault URI, app object id).
	ContainerID string
	// CredentialID is the stable identity of the credential instance,
	// including version where the backend versions credentials.
	CredentialID string
	Kind         CredentialKind
	// Name is the display name. Not unique, may be empty.
	Name string
	// NotBefore and ExpiresOn are nil when the backend reports no value.
	// Absent expiry means "never expires" or "expiry unknown"; the two
	// cannot be distinguished and neither is assumed.
	NotBefore *time.Time
	ExpiresOn *time.Time
	// Enabled reports whether the backend currently considers the
	// credential usable.
	Enabled bool
	// CredentialURI is an optional deep link to a management UI.
	// Display only, never part of identity or logic.
	CredentialURI string
	// Metadata is an open provider-specific attribute bag. Opaque to the
	// aggregation and classification logic; carried through untouched.
	Metadata map[string]any
}

// Identity returns the natural identity string of the record:
// Provider, ContainerID and CredentialID joined with '|'. Two records
// with equal Identity denote the same real-world credential.
func (r CredentialRecord) Identity() string {
	return r.Provider + "|" + r.ContainerID + "|" + r.CredentialID
}
