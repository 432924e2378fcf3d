package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
	"resource-auth-service/internal/util"
)

// ResourceRepository is the Scylla-backed implementation of
// repository.ResourceRepository.
type ResourceRepository struct {
	client *ScyllaClient
}

func NewResourceRepository(client *ScyllaClient) *ResourceRepository {
	return &ResourceRepository{client: client}
}

func (r *ResourceRepository) GetResource(ctx context.Context, resourceID int) (*models.Resource, error) {
	res := &models.Resource{}

	err := r.client.Prepared.GetResource.WithContext(ctx).Bind(resourceID).Scan(
		&res.ResourceID, &res.Name, &res.PasswordEnabled, &res.PasswordHash,
		&res.PincodeEnabled, &res.PincodeHash, &res.SSOEnabled, &res.WhitelistEnabled,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to get resource",
			util.Int("resource_id", resourceID),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	return res, nil
}

func (r *ResourceRepository) GetWhitelist(ctx context.Context, resourceID int) ([]models.WhitelistEntry, error) {
	iter := r.client.Prepared.GetWhitelist.WithContext(ctx).Bind(resourceID).Iter()

	var entries []models.WhitelistEntry
	var pattern string
	var createdAt time.Time
	for iter.Scan(&pattern, &createdAt) {
		entries = append(entries, models.WhitelistEntry{
			ResourceID:   resourceID,
			EmailPattern: pattern,
			CreatedAt:    createdAt,
		})
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list whitelist entries",
			util.Int("resource_id", resourceID),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to list whitelist entries: %w", err)
	}

	return entries, nil
}

func (r *ResourceRepository) AddWhitelistEntry(ctx context.Context, entry models.WhitelistEntry) error {
	if !models.ValidWhitelistPattern(entry.EmailPattern) {
		return fmt.Errorf("invalid whitelist pattern: %q", entry.EmailPattern)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := r.client.Prepared.AddWhitelistEntry.WithContext(ctx).
		Bind(entry.ResourceID, entry.EmailPattern, entry.CreatedAt).Exec()
	if err != nil {
		return fmt.Errorf("failed to add whitelist entry: %w", err)
	}

	util.Info("Whitelist entry added",
		util.Int("resource_id", entry.ResourceID))
	return nil
}

func (r *ResourceRepository) RemoveWhitelistEntry(ctx context.Context, resourceID int, pattern string) error {
	err := r.client.Prepared.RemoveWhitelistEntry.WithContext(ctx).
		Bind(resourceID, pattern).Exec()
	if err != nil {
		return fmt.Errorf("failed to remove whitelist entry: %w", err)
	}
	return nil
}

func (r *ResourceRepository) GetCustomization(ctx context.Context, resourceID int) (*models.AuthCustomization, error) {
	rec := &models.AuthCustomization{}

	err := r.client.Prepared.GetCustomization.WithContext(ctx).Bind(resourceID).Scan(
		&rec.ResourceID, &rec.Enabled, &rec.Title, &rec.Description,
		&rec.Logo, &rec.Background, &rec.CSS, &rec.HTML, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customization: %w", err)
	}

	return rec, nil
}

// SetCustomization replaces the whole customization row. Partial patches are
// not supported.
func (r *ResourceRepository) SetCustomization(ctx context.Context, rec *models.AuthCustomization) error {
	rec.UpdatedAt = time.Now().UTC()

	err := r.client.Prepared.SetCustomization.WithContext(ctx).Bind(
		rec.ResourceID, rec.Enabled, rec.Title, rec.Description,
		rec.Logo, rec.Background, rec.CSS, rec.HTML, rec.UpdatedAt).Exec()
	if err != nil {
		util.Error("Failed to set customization",
			util.Int("resource_id", rec.ResourceID),
			util.ErrorField(err))
		return fmt.Errorf("failed to set customization: %w", err)
	}

	util.Info("Auth customization updated",
		util.Int("resource_id", rec.ResourceID),
		util.Bool("enabled", rec.Enabled))
	return nil
}

func (r *ResourceRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck()
}
