package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"resource-auth-service/internal/config"
	"resource-auth-service/internal/email"
	"resource-auth-service/internal/hashing"
	"resource-auth-service/internal/metrics"
	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
	redisrepo "resource-auth-service/internal/repository/redis"
	"resource-auth-service/internal/util"
)

// EventPublisher receives the internal audit trail. A nil publisher is valid
// and drops events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.AuthEvent) error
}

// AuthPayload carries the credential of one authentication attempt. Exactly
// one of the credential fields is meaningful per method.
type AuthPayload struct {
	Password   string `json:"password,omitempty"`
	Pincode    string `json:"pincode,omitempty"`
	Email      string `json:"email,omitempty"`
	OTP        string `json:"otp,omitempty"`
	RemoteAddr string `json:"-"`
}

// Outcome is the uniform result shape of the dispatcher: a session grant, an
// issued challenge, or (signalled via error) a denial.
type Outcome struct {
	Session string `json:"session,omitempty"`
	OTPSent bool   `json:"otpSent,omitempty"`
}

// PortalView is the single bootstrap payload the auth portal renders from:
// the offered method set and the sanitized branding, computed together so the
// offered and rendered method lists can never diverge.
type PortalView struct {
	ResourceID   int              `json:"resourceId"`
	ResourceName string           `json:"resourceName"`
	Methods      models.MethodSet `json:"methods"`
	Branding     RenderModel      `json:"branding"`
}

// AuthService is the authentication-method dispatcher. It routes a
// credential-bearing request to the matching verifier or flow and shapes the
// result; each verifier owns its own rule.
type AuthService struct {
	repo          repository.ResourceRepository
	hasher        *hashing.Hasher
	challenges    *redisrepo.ChallengeCache
	sessions      *redisrepo.SessionCache
	mailer        email.Sender
	events        EventPublisher
	customization *CustomizationService
	cfg           *config.Config

	// Short-lived read cache for resource rows; authentication traffic is
	// read-heavy and administrative writes are rare.
	resourceCache *gocache.Cache
}

func NewAuthService(
	repo repository.ResourceRepository,
	hasher *hashing.Hasher,
	challenges *redisrepo.ChallengeCache,
	sessions *redisrepo.SessionCache,
	mailer email.Sender,
	events EventPublisher,
	customization *CustomizationService,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		repo:          repo,
		hasher:        hasher,
		challenges:    challenges,
		sessions:      sessions,
		mailer:        mailer,
		events:        events,
		customization: customization,
		cfg:           cfg,
		resourceCache: gocache.New(30*time.Second, time.Minute),
	}
}

// Authenticate verifies one credential-bearing request against the resource's
// offered method set. It returns a session grant, an issued-challenge marker,
// or ErrAccessDenied. Every denial cause is collapsed into the same external
// error; the specific cause is only logged and audited.
func (s *AuthService) Authenticate(ctx context.Context, resourceID int, method models.AuthMethod, payload AuthPayload) (*Outcome, error) {
	res, err := s.getResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.deny(ctx, resourceID, method, payload, ErrResourceNotFound)
		}
		return nil, s.deny(ctx, resourceID, method, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	if !res.OfferedMethods().Offers(method) {
		return nil, s.deny(ctx, resourceID, method, payload, ErrMethodNotOffered)
	}

	switch method {
	case models.MethodPassword:
		return s.authenticateSecret(ctx, res, method, payload)
	case models.MethodPincode:
		return s.authenticateSecret(ctx, res, method, payload)
	case models.MethodWhitelist:
		if payload.OTP == "" {
			return s.requestChallenge(ctx, res, payload)
		}
		return s.submitChallenge(ctx, res, payload)
	default:
		// SSO is advertised in the method set but completed by the identity
		// provider integration, never by this dispatcher.
		return nil, s.deny(ctx, resourceID, method, payload, ErrMethodNotOffered)
	}
}

func (s *AuthService) authenticateSecret(ctx context.Context, res *models.Resource, method models.AuthMethod, payload AuthPayload) (*Outcome, error) {
	var ok bool
	var err error

	switch method {
	case models.MethodPassword:
		ok, err = s.hasher.VerifySecret(res.PasswordHash, payload.Password)
	case models.MethodPincode:
		ok, err = s.hasher.VerifyPincode(res.PincodeHash, payload.Pincode)
	}
	if err != nil {
		return nil, s.deny(ctx, res.ResourceID, method, payload, fmt.Errorf("%w: %v", ErrInvalidCredential, err))
	}
	if !ok {
		return nil, s.deny(ctx, res.ResourceID, method, payload, ErrInvalidCredential)
	}

	return s.grant(ctx, res.ResourceID, method, payload)
}

// requestChallenge is the first half of the whitelist flow: authorize the
// email, mint a fresh code, store it (replacing any prior live challenge for
// the same key) and dispatch it by mail.
func (s *AuthService) requestChallenge(ctx context.Context, res *models.Resource, payload AuthPayload) (*Outcome, error) {
	addr := strings.ToLower(strings.TrimSpace(payload.Email))
	if addr == "" {
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, ErrEmailNotAuthorized)
	}

	authorized, err := s.isAuthorized(ctx, res.ResourceID, addr)
	if err != nil {
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	if !authorized {
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, ErrEmailNotAuthorized)
	}

	if limit := s.cfg.Auth.OTPIssueLimit; limit > 0 {
		count, err := s.challenges.RegisterIssue(ctx, res.ResourceID, addr, s.cfg.Auth.OTPIssueWindow)
		if err != nil {
			return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
		}
		if count > int64(limit) {
			return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, ErrChallengeRateLimited)
		}
	}

	code, err := generateNumericCode(s.cfg.Auth.OTPLength)
	if err != nil {
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	if err := s.challenges.SetChallenge(ctx, res.ResourceID, addr, hashing.DigestCode(code), s.cfg.Auth.OTPTTL); err != nil {
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	if err := s.mailer.SendOTP(addr, res.Name, code); err != nil {
		// Do not leave a challenge the user can never learn the code of.
		_ = s.challenges.DeleteChallenge(ctx, res.ResourceID, addr)
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	s.publish(ctx, models.AuthEvent{
		EventType:  models.EventChallengeIssued,
		ResourceID: res.ResourceID,
		Method:     string(models.MethodWhitelist),
		Email:      addr,
		RemoteAddr: payload.RemoteAddr,
	})
	metrics.RecordChallengeIssued()

	util.Info("OTP challenge issued",
		util.Int("resource_id", res.ResourceID))

	return &Outcome{OTPSent: true}, nil
}

// submitChallenge is the second half of the whitelist flow. The cache layer
// makes match-and-consume atomic, so concurrent submits of the same code
// produce at most one grant.
func (s *AuthService) submitChallenge(ctx context.Context, res *models.Resource, payload AuthPayload) (*Outcome, error) {
	addr := strings.ToLower(strings.TrimSpace(payload.Email))

	result, err := s.challenges.ConsumeChallenge(ctx, res.ResourceID, addr, hashing.DigestCode(payload.OTP), s.cfg.Auth.OTPTTL)
	if err != nil {
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	switch result {
	case redisrepo.ConsumeMatch:
		return s.grant(ctx, res.ResourceID, models.MethodWhitelist, payload)
	case redisrepo.ConsumeMismatch:
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, ErrInvalidCode)
	case redisrepo.ConsumeExhausted:
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, fmt.Errorf("%w: attempt budget exhausted", ErrInvalidCode))
	default:
		return nil, s.deny(ctx, res.ResourceID, models.MethodWhitelist, payload, ErrChallengeExpired)
	}
}

// isAuthorized is the whitelist membership test: any single matching entry
// authorizes, exact or wildcard, with no priority among entries.
func (s *AuthService) isAuthorized(ctx context.Context, resourceID int, email string) (bool, error) {
	entries, err := s.repo.GetWhitelist(ctx, resourceID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Matches(email) {
			return true, nil
		}
	}
	return false, nil
}

// grant mints an opaque, resource-scoped session token. The token carries no
// relationship to the verified secret.
func (s *AuthService) grant(ctx context.Context, resourceID int, method models.AuthMethod, payload AuthPayload) (*Outcome, error) {
	token, err := generateToken()
	if err != nil {
		return nil, s.deny(ctx, resourceID, method, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	now := time.Now().UTC()
	rec := redisrepo.SessionRecord{
		ResourceID: resourceID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.cfg.Auth.SessionTTL),
	}
	if err := s.sessions.SetSession(ctx, token, rec, s.cfg.Auth.SessionTTL); err != nil {
		return nil, s.deny(ctx, resourceID, method, payload, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	s.publish(ctx, models.AuthEvent{
		EventType:  models.EventSessionGranted,
		ResourceID: resourceID,
		Method:     string(method),
		Email:      strings.ToLower(payload.Email),
		RemoteAddr: payload.RemoteAddr,
	})
	metrics.RecordAuthOutcome(string(method), "granted")

	util.Info("Session granted",
		util.Int("resource_id", resourceID),
		util.String("method", string(method)))

	return &Outcome{Session: token}, nil
}

// BuildRedirectURL appends the session token to the caller-supplied redirect
// target as a single named query parameter. When a redirect host allow-list
// is configured, absolute targets outside it are rejected; otherwise
// redirect-target policy belongs to the fronting proxy.
func (s *AuthService) BuildRedirectURL(target, token string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid redirect target: %w", err)
	}
	if u.Host != "" && len(s.cfg.Auth.RedirectHosts) > 0 {
		allowed := false
		for _, host := range s.cfg.Auth.RedirectHosts {
			if strings.EqualFold(u.Host, host) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("redirect host %q not allowed", u.Host)
		}
	}
	q := u.Query()
	q.Set(s.cfg.Auth.SessionParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// GetPortal assembles the portal bootstrap view: resource name, offered
// method set, and sanitized branding, fetched concurrently.
func (s *AuthService) GetPortal(ctx context.Context, resourceID int) (*PortalView, error) {
	var res *models.Resource
	var branding RenderModel

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = s.getResource(gctx, resourceID)
		return err
	})
	g.Go(func() error {
		branding = s.customization.PresentForResource(gctx, resourceID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PortalView{
		ResourceID:   res.ResourceID,
		ResourceName: res.Name,
		Methods:      res.OfferedMethods(),
		Branding:     branding,
	}, nil
}

// IntrospectSession resolves a token to its session record, for the fronting
// proxy.
func (s *AuthService) IntrospectSession(ctx context.Context, token string) (*redisrepo.SessionRecord, error) {
	return s.sessions.GetSession(ctx, token)
}

func (s *AuthService) getResource(ctx context.Context, resourceID int) (*models.Resource, error) {
	cacheKey := fmt.Sprintf("resource:%d", resourceID)
	if cached, ok := s.resourceCache.Get(cacheKey); ok {
		return cached.(*models.Resource), nil
	}

	res, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	s.resourceCache.Set(cacheKey, res, gocache.DefaultExpiration)
	return res, nil
}

// deny normalizes every failure into the uniform external denial, recording
// the real cause internally.
func (s *AuthService) deny(ctx context.Context, resourceID int, method models.AuthMethod, payload AuthPayload, cause error) error {
	util.Warn("Authentication denied",
		util.Int("resource_id", resourceID),
		util.String("method", string(method)),
		util.ErrorField(cause))

	s.publish(ctx, models.AuthEvent{
		EventType:  models.EventAccessDenied,
		ResourceID: resourceID,
		Method:     string(method),
		Reason:     cause.Error(),
		Email:      strings.ToLower(payload.Email),
		RemoteAddr: payload.RemoteAddr,
	})
	metrics.RecordAuthOutcome(string(method), "denied")

	return ErrAccessDenied
}

func (s *AuthService) publish(ctx context.Context, event models.AuthEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		util.Warn("Failed to publish auth event", util.ErrorField(err))
	}
}

// generateToken returns an opaque 256-bit token, base64url-encoded.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// generateNumericCode returns a random numeric one-time code.
func generateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	// Rejection sampling: bytes >= 250 are discarded so b%10 is uniform
	// over the ten digits.
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
