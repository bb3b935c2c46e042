package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/keylens/keylens/internal/application"
	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CredentialResponse is the JSON representation of one credential record.
type CredentialResponse struct {
	Provider      string         `json:"provider"`
	Container     string         `json:"container"`
	ContainerID   string         `json:"container_id"`
	CredentialID  string         `json:"credential_id"`
	Kind          string         `json:"kind"`
	Name          string         `json:"name"`
	NotBefore     *string        `json:"not_before"`
	ExpiresOn     *string        `json:"expires_on"`
	Enabled       bool           `json:"enabled"`
	CredentialURI string         `json:"credential_uri,omitempty"`
	Metadata      map[string]any `json:"metadata"`
}

// NotificationResponse is the JSON representation of one delivered notice.
type NotificationResponse struct {
	ID           int64   `json:"id"`
	Provider     string  `json:"provider"`
	Container    string  `json:"container"`
	CredentialID string  `json:"credential_id"`
	Kind         string  `json:"kind"`
	Message      string  `json:"message"`
	ExpiresOn    *string `json:"expires_on"`
	SentAt       string  `json:"sent_at"`
}

// SourceResponse describes one configured credential source.
type SourceResponse struct {
	Name                string   `json:"name"`
	RequiredPermissions []string `json:"required_permissions"`
}

// ConfigResponse is the public client configuration.
type ConfigResponse struct {
	Audience string `json:"audience"`
	Scope    string `json:"scope"`
}

// CycleSummaryResponse describes the last completed scan cycle.
type CycleSummaryResponse struct {
	CycleID      string `json:"cycle_id"`
	StartedAt    string `json:"started_at"`
	DurationMS   int64  `json:"duration_ms"`
	Collected    int    `json:"collected"`
	Noticeworthy int    `json:"noticeworthy"`
	Notified     int    `json:"notified"`
	EndedEarly   bool   `json:"ended_early"`
}

// ScanResponse is the JSON representation of a completed manual scan.
type ScanResponse struct {
	Status    string                `json:"status"`
	LastCycle *CycleSummaryResponse `json:"last_cycle"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status    string                `json:"status"`
	Time      string                `json:"time"`
	ScanState string                `json:"scan_state"`
	LastCycle *CycleSummaryResponse `json:"last_cycle"`
}

// toCredentialResponse converts a domain CredentialRecord to its JSON
// representation.
func toCredentialResponse(rec model.CredentialRecord) CredentialResponse {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return CredentialResponse{
		Provider:      rec.Provider,
		Container:     rec.Container,
		ContainerID:   rec.ContainerID,
		CredentialID:  rec.CredentialID,
		Kind:          string(rec.Kind),
		Name:          rec.Name,
		NotBefore:     formatTime(rec.NotBefore),
		ExpiresOn:     formatTime(rec.ExpiresOn),
		Enabled:       rec.Enabled,
		CredentialURI: rec.CredentialURI,
		Metadata:      metadata,
	}
}

// toNotificationResponse converts a stored notification to its JSON
// representation.
func toNotificationResponse(rec driven.NotificationRecord) NotificationResponse {
	return NotificationResponse{
		ID:           rec.ID,
		Provider:     rec.Provider,
		Container:    rec.Container,
		CredentialID: rec.CredentialID,
		Kind:         string(rec.Kind),
		Message:      rec.Message,
		ExpiresOn:    formatTime(rec.ExpiresOn),
		SentAt:       rec.SentAt.UTC().Format(time.RFC3339),
	}
}

// toCycleSummaryResponse converts a cycle summary to its JSON
// representation. Nil in, nil out: no cycle has completed yet.
func toCycleSummaryResponse(summary *application.CycleSummary) *CycleSummaryResponse {
	if summary == nil {
		return nil
	}

	return &CycleSummaryResponse{
		CycleID:      summary.CycleID,
		StartedAt:    summary.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:   summary.Duration.Milliseconds(),
		Collected:    summary.Collected,
		Noticeworthy: summary.Noticeworthy,
		Notified:     summary.Notified,
		EndedEarly:   summary.EndedEarly,
	}
}

// formatTime renders an optional time as RFC 3339 in UTC.
func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
