package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resource-auth-service/internal/bucketing"
	"resource-auth-service/internal/client"
	"resource-auth-service/internal/util"
)

const (
	challengePrefix        = "otp_challenge:"
	challengeAttemptPrefix = "otp_attempts:"
	challengeIssuePrefix   = "otp_issues:"
)

// ConsumeResult is the outcome of an atomic challenge consumption attempt.
type ConsumeResult int

const (
	// ConsumeMatch: the code matched and the challenge was deleted. At most
	// one concurrent submitter observes this per challenge.
	ConsumeMatch ConsumeResult = iota
	// ConsumeMismatch: wrong code; the challenge stays live.
	ConsumeMismatch
	// ConsumeMissing: no live challenge (never issued, expired, or already
	// consumed).
	ConsumeMissing
	// ConsumeExhausted: wrong code and the failed-attempt budget is spent;
	// the challenge was deleted.
	ConsumeExhausted
)

// consumeScript compares the stored code digest and deletes the challenge on
// a match in one atomic step. On mismatch it bumps the attempt counter and
// deletes the challenge once the budget is exhausted. Running as a single
// Lua script is what guarantees the at-most-one-winner property under
// concurrent submits.
const consumeScript = `
local stored = redis.call('GET', KEYS[1])
if not stored then
  return 'missing'
end
if stored == ARGV[1] then
  redis.call('DEL', KEYS[1], KEYS[2])
  return 'match'
end
local attempts = redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[2], ARGV[2])
if attempts >= tonumber(ARGV[3]) then
  redis.call('DEL', KEYS[1], KEYS[2])
  return 'exhausted'
end
return 'mismatch'
`

// ChallengeCache holds live one-time-code challenges keyed by
// (resource, email). Expiry is enforced by Redis TTLs; there is exactly one
// live challenge per key because issuing overwrites.
type ChallengeCache struct {
	client      *client.RedisClient
	buckets     *bucketing.BucketingManager
	maxAttempts int
}

func NewChallengeCache(c *client.RedisClient, buckets *bucketing.BucketingManager, maxAttempts int) *ChallengeCache {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &ChallengeCache{client: c, buckets: buckets, maxAttempts: maxAttempts}
}

// SetChallenge stores the code digest for (resource, email), replacing any
// prior live challenge and resetting its attempt counter.
func (c *ChallengeCache) SetChallenge(ctx context.Context, resourceID int, email, codeDigest string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	challengeKey, attemptKey := c.keys(resourceID, email)

	pipe := c.client.Pipeline()
	pipe.Set(ctx, challengeKey, codeDigest, ttl)
	pipe.Del(ctx, attemptKey)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store OTP challenge",
			util.Int("resource_id", resourceID),
			util.Duration("ttl", ttl),
			util.ErrorField(err))
		return fmt.Errorf("failed to store OTP challenge: %w", err)
	}

	util.Debug("OTP challenge stored",
		util.Int("resource_id", resourceID),
		util.Duration("ttl", ttl))
	return nil
}

// ConsumeChallenge atomically matches the supplied code digest against the
// live challenge for (resource, email).
func (c *ChallengeCache) ConsumeChallenge(ctx context.Context, resourceID int, email, codeDigest string, ttl time.Duration) (ConsumeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	challengeKey, attemptKey := c.keys(resourceID, email)

	raw, err := c.client.Eval(ctx, consumeScript,
		[]string{challengeKey, attemptKey},
		codeDigest,
		int(ttl.Seconds()),
		c.maxAttempts,
	)
	if err != nil {
		util.Error("Failed to consume OTP challenge",
			util.Int("resource_id", resourceID),
			util.ErrorField(err))
		return ConsumeMissing, fmt.Errorf("failed to consume OTP challenge: %w", err)
	}

	switch raw {
	case "match":
		return ConsumeMatch, nil
	case "mismatch":
		return ConsumeMismatch, nil
	case "exhausted":
		return ConsumeExhausted, nil
	case "missing":
		return ConsumeMissing, nil
	default:
		return ConsumeMissing, fmt.Errorf("unexpected consume result: %v", raw)
	}
}

// DeleteChallenge drops any live challenge for (resource, email).
func (c *ChallengeCache) DeleteChallenge(ctx context.Context, resourceID int, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	challengeKey, attemptKey := c.keys(resourceID, email)
	if err := c.client.Del(ctx, challengeKey, attemptKey); err != nil {
		return fmt.Errorf("failed to delete OTP challenge: %w", err)
	}
	return nil
}

// RegisterIssue counts one challenge issue for (resource, email) and returns
// the running count. The window slides: every issue pushes expiry out by the
// full window.
func (c *ChallengeCache) RegisterIssue(ctx context.Context, resourceID int, email string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := c.client.IncrWithExpire(ctx, challengeIssuePrefix+c.suffix(resourceID, email), window)
	if err != nil {
		return 0, fmt.Errorf("failed to count challenge issue: %w", err)
	}
	return count, nil
}

// ChallengeTTL returns the remaining lifetime of a live challenge, or
// ErrNoChallenge when none exists.
func (c *ChallengeCache) ChallengeTTL(ctx context.Context, resourceID int, email string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	challengeKey, _ := c.keys(resourceID, email)
	ttl, err := c.client.TTL(ctx, challengeKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get challenge TTL: %w", err)
	}
	if ttl < 0 {
		return 0, ErrNoChallenge
	}
	return ttl, nil
}

// ErrNoChallenge is returned by ChallengeTTL when no live challenge exists.
var ErrNoChallenge = errors.New("no live challenge")

func (c *ChallengeCache) keys(resourceID int, email string) (challengeKey, attemptKey string) {
	suffix := c.suffix(resourceID, email)
	return challengePrefix + suffix, challengeAttemptPrefix + suffix
}

func (c *ChallengeCache) suffix(resourceID int, email string) string {
	email = strings.ToLower(email)
	bucket := 0
	if c.buckets != nil {
		bucket = c.buckets.ChallengeBucket(resourceID, email)
	}
	return fmt.Sprintf("%d:%d:%s", bucket, resourceID, email)
}
