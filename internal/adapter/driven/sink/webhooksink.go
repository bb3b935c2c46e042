package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NotificationSink = (*WebhookSink)(nil)

// webhookPayload is the JSON body posted to the webhook endpoint.
type webhookPayload struct {
	Provider     string `json:"provider"`
	Container    string `json:"container"`
	CredentialID string `json:"credential_id"`
	Kind         string `json:"kind"`
	Name         string `json:"name,omitempty"`
	ExpiresOn    string `json:"expires_on,omitempty"`
	Message      string `json:"message"`
}

// WebhookSink delivers notifications as JSON POSTs to a configured URL.
// Any non-2xx response is a delivery failure.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a WebhookSink posting to url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the notification payload.
func (s *WebhookSink) Send(ctx context.Context, n model.Notification) error {
	payload := webhookPayload{
		Provider:     n.Credential.Provider,
		Container:    n.Credential.Container,
		CredentialID: n.Credential.CredentialID,
		Kind:         string(n.Credential.Kind),
		Name:         n.Credential.Name,
		Message:      n.Message,
	}
	if n.Credential.ExpiresOn != nil {
		payload.ExpiresOn = n.Credential.ExpiresOn.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
