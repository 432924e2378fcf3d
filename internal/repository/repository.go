package repository

import (
	"context"
	"errors"

	"resource-auth-service/internal/models"
)

// ErrNotFound is returned when a resource or record does not exist. Callers
// on the authentication path must not leak it externally.
var ErrNotFound = errors.New("record not found")

// ResourceRepository is the boundary to the resource store. The core only
// reads resources and whitelist entries; customization records are replaced
// wholesale on administrative writes.
type ResourceRepository interface {
	GetResource(ctx context.Context, resourceID int) (*models.Resource, error)
	GetWhitelist(ctx context.Context, resourceID int) ([]models.WhitelistEntry, error)
	AddWhitelistEntry(ctx context.Context, entry models.WhitelistEntry) error
	RemoveWhitelistEntry(ctx context.Context, resourceID int, pattern string) error
	GetCustomization(ctx context.Context, resourceID int) (*models.AuthCustomization, error)
	SetCustomization(ctx context.Context, rec *models.AuthCustomization) error
	HealthCheck(ctx context.Context) error
}
