package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
)

// ResourceStore is an in-memory repository.ResourceRepository used in
// development mode and tests. It is safe for concurrent use.
type ResourceStore struct {
	mu             sync.RWMutex
	resources      map[int]models.Resource
	whitelist      map[int][]models.WhitelistEntry
	customizations map[int]models.AuthCustomization
}

func NewResourceStore() *ResourceStore {
	return &ResourceStore{
		resources:      make(map[int]models.Resource),
		whitelist:      make(map[int][]models.WhitelistEntry),
		customizations: make(map[int]models.AuthCustomization),
	}
}

// PutResource seeds or replaces a resource.
func (s *ResourceStore) PutResource(res models.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.UpdatedAt = time.Now().UTC()
	s.resources[res.ResourceID] = res
}

func (s *ResourceStore) GetResource(ctx context.Context, resourceID int) (*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[resourceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := res
	return &out, nil
}

func (s *ResourceStore) GetWhitelist(ctx context.Context, resourceID int) ([]models.WhitelistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.whitelist[resourceID]
	out := make([]models.WhitelistEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *ResourceStore) AddWhitelistEntry(ctx context.Context, entry models.WhitelistEntry) error {
	if !models.ValidWhitelistPattern(entry.EmailPattern) {
		return fmt.Errorf("invalid whitelist pattern: %q", entry.EmailPattern)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	for _, existing := range s.whitelist[entry.ResourceID] {
		if existing.EmailPattern == entry.EmailPattern {
			return nil
		}
	}
	s.whitelist[entry.ResourceID] = append(s.whitelist[entry.ResourceID], entry)
	return nil
}

func (s *ResourceStore) RemoveWhitelistEntry(ctx context.Context, resourceID int, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.whitelist[resourceID]
	for i, e := range entries {
		if e.EmailPattern == pattern {
			s.whitelist[resourceID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *ResourceStore) GetCustomization(ctx context.Context, resourceID int) (*models.AuthCustomization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.customizations[resourceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *ResourceStore) SetCustomization(ctx context.Context, rec *models.AuthCustomization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *rec
	stored.UpdatedAt = time.Now().UTC()
	s.customizations[rec.ResourceID] = stored
	return nil
}

func (s *ResourceStore) HealthCheck(ctx context.Context) error {
	return nil
}
