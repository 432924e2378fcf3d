package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resource-auth-service/internal/client"
	"resource-auth-service/internal/util"
)

const sessionPrefix = "resource_session:"

// ErrSessionNotFound is returned when a token has no live record.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the server-side view of an issued session grant. The token
// itself is opaque and self-expiring; the record exists so the fronting proxy
// can introspect tokens it receives.
type SessionRecord struct {
	ResourceID int       `json:"resource_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionCache stores session records keyed by token with the same TTL the
// token carries.
type SessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(c *client.RedisClient) *SessionCache {
	return &SessionCache{client: c}
}

func (c *SessionCache) SetSession(ctx context.Context, token string, rec SessionRecord, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := c.client.Set(ctx, sessionPrefix+token, payload, ttl); err != nil {
		util.Error("Failed to store session record",
			util.Int("resource_id", rec.ResourceID),
			util.Duration("ttl", ttl),
			util.ErrorField(err))
		return fmt.Errorf("failed to store session record: %w", err)
	}

	util.Debug("Session record stored",
		util.Int("resource_id", rec.ResourceID),
		util.Duration("ttl", ttl))
	return nil
}

func (c *SessionCache) GetSession(ctx context.Context, token string) (*SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, sessionPrefix+token)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("invalid session record format: %w", err)
	}
	return &rec, nil
}

func (c *SessionCache) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, sessionPrefix+token); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}
