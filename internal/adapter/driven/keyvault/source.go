// Package keyvault implements the CredentialSource port over Azure Key
// Vault: it walks every subscription the caller can see, every vault in
// those subscriptions, and every certificate, key and secret version in
// those vaults.
package keyvault

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/subscription/armsubscription"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azcertificates"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/keylens/keylens/internal/domain/model"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialSource = (*Source)(nil)

// Source enumerates credentials across all reachable Key Vaults. It is
// typically constructed per request via NewOnBehalfOfSource so discovery
// runs with the calling user's access, not the service's.
type Source struct {
	cred azcore.TokenCredential
	opts *arm.ClientOptions
}

// NewSource creates a Source using the given token credential.
func NewSource(cred azcore.TokenCredential) *Source {
	return &Source{cred: cred}
}

// NewOnBehalfOfSource creates a Source whose discovery runs on behalf of
// the user represented by userAssertion (the caller's bearer token),
// exchanged through the given app registration.
func NewOnBehalfOfSource(tenantID, clientID, clientSecret, userAssertion string) (*Source, error) {
	cred, err := azidentity.NewOnBehalfOfCredentialWithSecret(tenantID, clientID, userAssertion, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("create on-behalf-of credential: %w", err)
	}
	return NewSource(cred), nil
}

// Name implements driven.CredentialSource.
func (s *Source) Name() string { return "Azure.KeyVault.Discovery" }

// RequiredPermissions implements driven.CredentialSource.
func (s *Source) RequiredPermissions() []string {
	return []string{
		"Microsoft.Resources/subscriptions/read",
		"Microsoft.KeyVault/vaults/read",
		"Microsoft.KeyVault/vaults/secrets/read",
		"Microsoft.KeyVault/vaults/keys/read",
		"Microsoft.KeyVault/vaults/certificates/read",
	}
}

// Enumerate walks subscriptions, vaults and credential versions. A vault
// the caller cannot read contributes nothing; records from each vault
// are yielded sorted by Container then CredentialID. Only failures that
// are not access denials end the sequence with a trailing error.
func (s *Source) Enumerate(ctx context.Context) iter.Seq2[model.CredentialRecord, error] {
	return func(yield func(model.CredentialRecord, error) bool) {
		subsClient, err := armsubscription.NewSubscriptionsClient(s.cred, s.opts)
		if err != nil {
			yield(model.CredentialRecord{}, fmt.Errorf("create subscriptions client: %w", err))
			return
		}

		pager := subsClient.NewListPager(nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				if !accessDenied(err) {
					yield(model.CredentialRecord{}, fmt.Errorf("list subscriptions: %w", err))
				}
				return
			}

			for _, sub := range page.Value {
				if sub == nil || sub.SubscriptionID == nil {
					continue
				}
				if !s.enumerateSubscription(ctx, *sub, yield) {
					return
				}
			}
		}
	}
}

// enumerateSubscription yields every vault's records in one subscription.
// Returns false when the consumer stopped the sequence.
func (s *Source) enumerateSubscription(ctx context.Context, sub armsubscription.Subscription, yield func(model.CredentialRecord, error) bool) bool {
	vaultsClient, err := armkeyvault.NewVaultsClient(*sub.SubscriptionID, s.cred, s.opts)
	if err != nil {
		return yield(model.CredentialRecord{}, fmt.Errorf("create vaults client: %w", err))
	}

	display := *sub.SubscriptionID
	if sub.DisplayName != nil {
		display = *sub.DisplayName
	}

	pager := vaultsClient.NewListBySubscriptionPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			// Subscription readable but its vault list is not: skip it.
			if accessDenied(err) {
				return true
			}
			return yield(model.CredentialRecord{}, fmt.Errorf("list vaults in %s: %w", *sub.SubscriptionID, err))
		}

		for _, vault := range page.Value {
			if vault == nil || vault.Name == nil || vault.Properties == nil || vault.Properties.VaultURI == nil {
				continue
			}

			scope := vaultScope{
				subscriptionID: *sub.SubscriptionID,
				container:      display + "/" + *vault.Name,
				vaultURI:       *vault.Properties.VaultURI,
			}
			for _, rec := range s.drainVault(ctx, scope) {
				if !yield(rec, nil) {
					return false
				}
			}
		}
	}
	return true
}

// vaultScope carries the identifiers every record from one vault shares.
type vaultScope struct {
	subscriptionID string
	container      string
	vaultURI       string
}

// drainVault gathers all certificate, key and secret versions from one
// vault, sorted by Container then CredentialID. Each credential type is
// attempted independently; a type the caller cannot list is skipped.
func (s *Source) drainVault(ctx context.Context, scope vaultScope) []model.CredentialRecord {
	var records []model.CredentialRecord
	records = append(records, s.vaultCertificates(ctx, scope)...)
	records = append(records, s.vaultKeys(ctx, scope)...)
	records = append(records, s.vaultSecrets(ctx, scope)...)

	sort.Slice(records, func(i, j int) bool {
		if records[i].Container != records[j].Container {
			return records[i].Container < records[j].Container
		}
		return records[i].CredentialID < records[j].CredentialID
	})
	return records
}

func (s *Source) vaultCertificates(ctx context.Context, scope vaultScope) []model.CredentialRecord {
	client, err := azcertificates.NewClient(scope.vaultURI, s.cred, nil)
	if err != nil {
		return nil
	}

	var records []model.CredentialRecord
	pager := client.NewListCertificatePropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil
		}
		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			versions := client.NewListCertificatePropertiesVersionsPager(props.ID.Name(), nil)
			for versions.More() {
				vpage, err := versions.NextPage(ctx)
				if err != nil {
					return nil
				}
				for _, version := range vpage.Value {
					if version == nil || version.ID == nil {
						continue
					}
					records = append(records, recordFromCertificate(scope, *version))
				}
			}
		}
	}
	return records
}

func (s *Source) vaultKeys(ctx context.Context, scope vaultScope) []model.CredentialRecord {
	client, err := azkeys.NewClient(scope.vaultURI, s.cred, nil)
	if err != nil {
		return nil
	}

	var records []model.CredentialRecord
	pager := client.NewListKeyPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil
		}
		for _, props := range page.Value {
			if props == nil || props.KID == nil {
				continue
			}
			versions := client.NewListKeyPropertiesVersionsPager(props.KID.Name(), nil)
			for versions.More() {
				vpage, err := versions.NextPage(ctx)
				if err != nil {
					return nil
				}
				for _, version := range vpage.Value {
					if version == nil || version.KID == nil {
						continue
					}
					records = append(records, recordFromKey(scope, *version))
				}
			}
		}
	}
	return records
}

func (s *Source) vaultSecrets(ctx context.Context, scope vaultScope) []model.CredentialRecord {
	client, err := azsecrets.NewClient(scope.vaultURI, s.cred, nil)
	if err != nil {
		return nil
	}

	var records []model.CredentialRecord
	pager := client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil
		}
		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			versions := client.NewListSecretPropertiesVersionsPager(props.ID.Name(), nil)
			for versions.More() {
				vpage, err := versions.NextPage(ctx)
				if err != nil {
					return nil
				}
				for _, version := range vpage.Value {
					if version == nil || version.ID == nil {
						continue
					}
					records = append(records, recordFromSecret(scope, *version))
				}
			}
		}
	}
	return records
}

// accessDenied reports whether err is an HTTP 401/403 from the service.
func accessDenied(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusForbidden
	}
	return false
}
