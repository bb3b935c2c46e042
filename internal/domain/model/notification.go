package model

// Notification is a read-only view pairing one credential record with its
// rendered human-readable message. It has no identity of its own beyond
// the credential it wraps.
type Notification struct {
	Credential CredentialRecord
	Message    string
}
