package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keylens/keylens/internal/domain/model"
)

func sampleNotification(credentialID string, expiresOn *time.Time) model.Notification {
	return model.Notification{
		Credential: model.CredentialRecord{
			Provider:     "Azure.KeyVault",
			Container:    "prod-sub/prod-vault",
			ContainerID:  "https://prod-vault.vault.azure.net/",
			CredentialID: credentialID,
			Kind:         model.KindSecret,
			Name:         credentialID,
			ExpiresOn:    expiresOn,
			Enabled:      true,
		},
		Message: "Credential '" + credentialID + "' in 'prod-sub/prod-vault' expires in 7 days on 2024-06-08.",
	}
}

func TestNotificationRepo_RecordAndRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepo(db)
	ctx := context.Background()

	expires := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, sampleNotification("db-password:v1", &expires)))
	require.NoError(t, repo.Record(ctx, sampleNotification("tls-cert:v3", nil)))

	records, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first; same sent_at resolves by descending id.
	assert.Equal(t, "tls-cert:v3", records[0].CredentialID)
	assert.Nil(t, records[0].ExpiresOn)
	assert.Equal(t, "db-password:v1", records[1].CredentialID)
	require.NotNil(t, records[1].ExpiresOn)
	assert.True(t, expires.Equal(*records[1].ExpiresOn))

	for _, rec := range records {
		assert.Equal(t, "Azure.KeyVault", rec.Provider)
		assert.Equal(t, model.KindSecret, rec.Kind)
		assert.False(t, rec.SentAt.IsZero())
	}
}

func TestNotificationRepo_RecentRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepo(db)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, repo.Record(ctx, sampleNotification("cred", nil)))
	}

	records, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestNotificationRepo_RecentEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepo(db)

	records, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
