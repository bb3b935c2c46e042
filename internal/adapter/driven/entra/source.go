// Package entra implements the CredentialSource port over the Microsoft
// Graph applications API, discovering password and key credentials on
// app registrations.
package entra

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/gregjones/httpcache"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

const graphScope = "https://graph.microsoft.com/.default"

// Compile-time interface satisfaction check.
var _ driven.CredentialSource = (*Source)(nil)

// Source enumerates app registration credentials from one Entra ID
// tenant. Construction is cheap; each Enumerate call starts a fresh
// paged walk of the applications collection.
type Source struct {
	cred    azcore.TokenCredential
	client  *http.Client
	baseURL string
	tenant  string
}

// NewSource creates a Source using the given token credential. tenant is
// a display label carried into record metadata; pass "" for the
// credential's home tenant. The HTTP stack caches conditional responses
// in memory (ETag-based).
func NewSource(cred azcore.TokenCredential, tenant string) *Source {
	if tenant == "" {
		tenant = "Current Tenant"
	}
	return &Source{
		cred: cred,
		client: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   30 * time.Second,
		},
		baseURL: "https://graph.microsoft.com/v1.0",
		tenant:  tenant,
	}
}

// NewSourceWithHTTPClient creates a Source with a custom http.Client and
// base URL. Intended for testing against an httptest server.
func NewSourceWithHTTPClient(cred azcore.TokenCredential, client *http.Client, baseURL, tenant string) *Source {
	src := NewSource(cred, tenant)
	src.client = client
	src.baseURL = baseURL
	return src
}

// Name implements driven.CredentialSource.
func (s *Source) Name() string { return "Azure.EntraId.Discovery" }

// RequiredPermissions implements driven.CredentialSource.
func (s *Source) RequiredPermissions() []string {
	return []string{
		"Application.Read.All",
		"Directory.Read.All",
	}
}

// Enumerate walks all app registrations and yields one record per
// password or key credential, sorted by Container then CredentialID.
// Permission denials end the sequence silently; records gathered before
// any other failure are still yielded, followed by the error.
func (s *Source) Enumerate(ctx context.Context) iter.Seq2[model.CredentialRecord, error] {
	return func(yield func(model.CredentialRecord, error) bool) {
		records, err := s.collect(ctx)

		sort.Slice(records, func(i, j int) bool {
			if records[i].Container != records[j].Container {
				return records[i].Container < records[j].Container
			}
			return records[i].CredentialID < records[j].CredentialID
		})

		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
		if err != nil {
			yield(model.CredentialRecord{}, err)
		}
	}
}

// applicationPage is one page of the Graph applications collection.
type applicationPage struct {
	Value    []application `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

type application struct {
	ID                  string            `json:"id"`
	DisplayName         string            `json:"displayName"`
	AppID               string            `json:"appId"`
	PasswordCredentials []credentialEntry `json:"passwordCredentials"`
	KeyCredentials      []credentialEntry `json:"keyCredentials"`
}

type credentialEntry struct {
	KeyID         string     `json:"keyId"`
	DisplayName   string     `json:"displayName"`
	StartDateTime *time.Time `json:"startDateTime"`
	EndDateTime   *time.Time `json:"endDateTime"`
}

func (s *Source) collect(ctx context.Context) ([]model.CredentialRecord, error) {
	token, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
	if err != nil {
		return nil, fmt.Errorf("acquire graph token: %w", err)
	}

	var records []model.CredentialRecord
	url := s.baseURL + "/applications?$select=id,displayName,appId,passwordCredentials,keyCredentials"

	for url != "" {
		page, err := s.fetchPage(ctx, url, token.Token)
		if err != nil {
			return records, err
		}
		if page == nil {
			// Access denied: contribute what we have, no error.
			return records, nil
		}

		for _, app := range page.Value {
			records = append(records, s.mapApplication(app)...)
		}
		url = page.NextLink
	}

	return records, nil
}

// fetchPage returns (nil, nil) on 401/403: lacking directory read
// permission is an expected condition, not a failure.
func (s *Source) fetchPage(ctx context.Context, url, token string) (*applicationPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query graph applications: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("graph applications returned status %d", resp.StatusCode)
	}

	var page applicationPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode graph applications page: %w", err)
	}
	return &page, nil
}

func (s *Source) mapApplication(app application) []model.CredentialRecord {
	container := app.DisplayName
	if container == "" {
		container = "Unknown App"
	}

	records := make([]model.CredentialRecord, 0, len(app.PasswordCredentials)+len(app.KeyCredentials))

	for _, cred := range app.PasswordCredentials {
		records = append(records, s.mapCredential(app, container, cred, model.KindPassword, "Password Credential"))
	}
	for _, cred := range app.KeyCredentials {
		records = append(records, s.mapCredential(app, container, cred, model.KindCertificate, "Certificate Credential"))
	}

	return records
}

func (s *Source) mapCredential(app application, container string, cred credentialEntry, kind model.CredentialKind, defaultName string) model.CredentialRecord {
	name := cred.DisplayName
	if name == "" {
		name = defaultName
	}

	return model.CredentialRecord{
		Provider:     "Azure.EntraId",
		Container:    container,
		ContainerID:  app.ID,
		CredentialID: cred.KeyID,
		Kind:         kind,
		Name:         name,
		NotBefore:    cred.StartDateTime,
		ExpiresOn:    cred.EndDateTime,
		// Graph exposes no enabled flag on app credentials.
		Enabled: true,
		Metadata: map[string]any{
			"appId":    app.AppID,
			"tenantId": s.tenant,
		},
	}
}
