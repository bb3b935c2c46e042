package keyvault

import (
	"encoding/hex"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azcertificates"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/keylens/keylens/internal/domain/model"
)

const provider = "Azure.KeyVault"

func recordFromCertificate(scope vaultScope, props azcertificates.CertificateProperties) model.CredentialRecord {
	rec := model.CredentialRecord{
		Provider:      provider,
		Container:     scope.container,
		ContainerID:   scope.vaultURI,
		CredentialID:  string(*props.ID),
		Kind:          model.KindCertificate,
		Name:          props.ID.Name(),
		CredentialURI: string(*props.ID),
		Metadata: map[string]any{
			"subscriptionId": scope.subscriptionID,
			"tags":           stringTags(props.Tags),
		},
	}
	if props.X509Thumbprint != nil {
		rec.Metadata["x509Thumbprint"] = hex.EncodeToString(props.X509Thumbprint)
	}
	if attrs := props.Attributes; attrs != nil {
		rec.NotBefore = attrs.NotBefore
		rec.ExpiresOn = attrs.Expires
		if attrs.Enabled != nil {
			rec.Enabled = *attrs.Enabled
		}
		if attrs.RecoveryLevel != nil {
			rec.Metadata["recoveryLevel"] = *attrs.RecoveryLevel
		}
	}
	return rec
}

func recordFromKey(scope vaultScope, props azkeys.KeyProperties) model.CredentialRecord {
	rec := model.CredentialRecord{
		Provider:      provider,
		Container:     scope.container,
		ContainerID:   scope.vaultURI,
		CredentialID:  props.KID.Name() + ":" + props.KID.Version(),
		Kind:          model.KindKey,
		Name:          props.KID.Name(),
		CredentialURI: string(*props.KID),
		Metadata: map[string]any{
			"subscriptionId": scope.subscriptionID,
			"tags":           stringTags(props.Tags),
		},
	}
	if attrs := props.Attributes; attrs != nil {
		rec.NotBefore = attrs.NotBefore
		rec.ExpiresOn = attrs.Expires
		if attrs.Enabled != nil {
			rec.Enabled = *attrs.Enabled
		}
	}
	return rec
}

func recordFromSecret(scope vaultScope, props azsecrets.SecretProperties) model.CredentialRecord {
	rec := model.CredentialRecord{
		Provider:      provider,
		Container:     scope.container,
		ContainerID:   scope.vaultURI,
		CredentialID:  props.ID.Name() + ":" + props.ID.Version(),
		Kind:          model.KindSecret,
		Name:          props.ID.Name(),
		CredentialURI: string(*props.ID),
		Metadata: map[string]any{
			"subscriptionId": scope.subscriptionID,
			"tags":           stringTags(props.Tags),
		},
	}
	if attrs := props.Attributes; attrs != nil {
		rec.NotBefore = attrs.NotBefore
		rec.ExpiresOn = attrs.Expires
		if attrs.Enabled != nil {
			rec.Enabled = *attrs.Enabled
		}
	}
	return rec
}

// stringTags flattens the SDK's pointer-valued tag map.
func stringTags(tags map[string]*string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
