package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
)

func TestResourceRoundTrip(t *testing.T) {
	store := NewResourceStore()
	ctx := context.Background()

	_, err := store.GetResource(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	store.PutResource(models.Resource{ResourceID: 1, Name: "grafana", PasswordEnabled: true})

	res, err := store.GetResource(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "grafana", res.Name)
	assert.False(t, res.CreatedAt.IsZero())
}

func TestWhitelistAddRemove(t *testing.T) {
	store := NewResourceStore()
	ctx := context.Background()

	require.NoError(t, store.AddWhitelistEntry(ctx, models.WhitelistEntry{
		ResourceID:   1,
		EmailPattern: "alice@example.com",
	}))
	// Duplicate adds are idempotent.
	require.NoError(t, store.AddWhitelistEntry(ctx, models.WhitelistEntry{
		ResourceID:   1,
		EmailPattern: "alice@example.com",
	}))

	entries, err := store.GetWhitelist(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.RemoveWhitelistEntry(ctx, 1, "alice@example.com"))

	entries, err = store.GetWhitelist(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWhitelistRejectsInvalidPattern(t *testing.T) {
	store := NewResourceStore()

	err := store.AddWhitelistEntry(context.Background(), models.WhitelistEntry{
		ResourceID:   1,
		EmailPattern: "ali*ce@example.com",
	})
	assert.Error(t, err)
}

func TestCustomizationReplaceWholesale(t *testing.T) {
	store := NewResourceStore()
	ctx := context.Background()

	_, err := store.GetCustomization(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.SetCustomization(ctx, &models.AuthCustomization{
		ResourceID: 1,
		Enabled:    true,
		Title:      "First",
		CSS:        "body{}",
	}))
	require.NoError(t, store.SetCustomization(ctx, &models.AuthCustomization{
		ResourceID: 1,
		Title:      "Second",
	}))

	rec, err := store.GetCustomization(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Second", rec.Title)
	assert.False(t, rec.Enabled, "replacement does not merge with the prior row")
	assert.Empty(t, rec.CSS)
}
