package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-auth-service/internal/bucketing"
	"resource-auth-service/internal/client"
	"resource-auth-service/internal/config"
	"resource-auth-service/internal/hashing"
	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
	"resource-auth-service/internal/repository/memory"
	redisrepo "resource-auth-service/internal/repository/redis"
	"resource-auth-service/internal/service"
	"resource-auth-service/internal/util"
)

type captureMailer struct {
	mu   sync.Mutex
	code string
	fail bool
}

func (m *captureMailer) SendOTP(to, resourceName, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	if m.fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (m *captureMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

type serverFixture struct {
	server *httptest.Server
	store  *memory.ResourceStore
	mailer *captureMailer
	hasher *hashing.Hasher
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	store := memory.NewResourceStore()
	f := newServerFixtureWithRepo(t, store)
	f.store = store
	return f
}

func newServerFixtureWithRepo(t *testing.T, repo repository.ResourceRepository) *serverFixture {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			OTPLength:           8,
			OTPTTL:              10 * time.Minute,
			OTPMaxAttempts:      5,
			SessionTTL:          2 * time.Hour,
			SessionParam:        "p_session_request",
			ChallengeKeyBuckets: 4,
		},
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  8 * 1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
		},
	}

	mr := miniredis.RunT(t)
	rc := client.NewRedisClientFromAddr(mr.Addr())
	t.Cleanup(func() { _ = rc.Close() })

	hasher := hashing.NewHasher(cfg)
	mailer := &captureMailer{}

	services := service.NewServiceFactory(
		repo,
		hasher,
		redisrepo.NewChallengeCache(rc, bucketing.NewBucketingManager(cfg), cfg.Auth.OTPMaxAttempts),
		redisrepo.NewSessionCache(rc),
		mailer,
		nil,
		cfg,
	)

	router := NewRouter(
		NewAuthHandler(services.AuthService(), util.Get()),
		NewCustomizationHandler(services.CustomizationService(), util.Get()),
		util.Get(),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &serverFixture{server: server, mailer: mailer, hasher: hasher}
}

func (f *serverFixture) seedPasswordResource(t *testing.T, id int, password string) {
	t.Helper()
	hash, err := f.hasher.HashSecret(password)
	require.NoError(t, err)
	f.store.PutResource(models.Resource{
		ResourceID:      id,
		Name:            "grafana",
		PasswordEnabled: true,
		PasswordHash:    hash,
	})
}

func (f *serverFixture) postJSON(t *testing.T, path string, body interface{}) (*http.Response, Response) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (f *serverFixture) getJSON(t *testing.T, path string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func dataField(t *testing.T, envelope Response, key string) interface{} {
	t.Helper()
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", envelope.Data)
	return data[key]
}

func TestPortalEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.seedPasswordResource(t, 1, "hunter2")

	resp, envelope := f.getJSON(t, "/api/v1/auth/resource/1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	methods, ok := dataField(t, envelope, "methods").(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, methods["password"])
	assert.Equal(t, false, methods["pincode"])

	branding, ok := dataField(t, envelope, "branding").(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Authentication Required", branding["title"])
}

func TestPortalUnknownResource(t *testing.T) {
	f := newServerFixture(t)

	resp, envelope := f.getJSON(t, "/api/v1/auth/resource/99")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, envelope.Success)
}

func TestPortalInvalidResourceID(t *testing.T) {
	f := newServerFixture(t)

	resp, envelope := f.getJSON(t, "/api/v1/auth/resource/not-a-number")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)
}

func TestPasswordEndpointGrantsSession(t *testing.T) {
	f := newServerFixture(t)
	f.seedPasswordResource(t, 1, "hunter2")

	resp, envelope := f.postJSON(t, "/api/v1/auth/resource/1/password", map[string]string{
		"password": "hunter2",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	session, _ := dataField(t, envelope, "session").(string)
	assert.NotEmpty(t, session)

	// The granted token introspects back to the resource.
	resp, envelope = f.getJSON(t, "/api/v1/auth/session/"+session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), dataField(t, envelope, "resource_id"))
}

func TestPasswordEndpointRedirect(t *testing.T) {
	f := newServerFixture(t)
	f.seedPasswordResource(t, 1, "hunter2")

	_, envelope := f.postJSON(t, "/api/v1/auth/resource/1/password", map[string]string{
		"password": "hunter2",
		"redirect": "https://app.example.com/dashboard",
	})
	require.True(t, envelope.Success)

	redirect, _ := dataField(t, envelope, "redirect").(string)
	require.NotEmpty(t, redirect)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	session, _ := dataField(t, envelope, "session").(string)
	assert.Equal(t, session, u.Query().Get("p_session_request"))
}

func TestDenialShapeIsUniform(t *testing.T) {
	f := newServerFixture(t)
	f.seedPasswordResource(t, 1, "hunter2")

	// Wrong password, unknown resource, and a method the resource does not
	// offer all produce byte-identical denial bodies.
	bodies := make([]string, 0, 3)
	for _, req := range []struct {
		path string
		body map[string]string
	}{
		{"/api/v1/auth/resource/1/password", map[string]string{"password": "wrong"}},
		{"/api/v1/auth/resource/99/password", map[string]string{"password": "hunter2"}},
		{"/api/v1/auth/resource/1/pincode", map[string]string{"pincode": "123456"}},
	} {
		payload, err := json.Marshal(req.body)
		require.NoError(t, err)
		resp, err := http.Post(f.server.URL+req.path, "application/json", bytes.NewReader(payload))
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, req.path)

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		bodies = append(bodies, buf.String())
	}

	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
}

func TestWhitelistEndpointTwoSteps(t *testing.T) {
	f := newServerFixture(t)
	f.store.PutResource(models.Resource{ResourceID: 2, Name: "wiki", WhitelistEnabled: true})
	require.NoError(t, f.store.AddWhitelistEntry(context.Background(), models.WhitelistEntry{
		ResourceID:   2,
		EmailPattern: "*@example.com",
	}))

	resp, envelope := f.postJSON(t, "/api/v1/auth/resource/2/whitelist", map[string]string{
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
	assert.Equal(t, true, dataField(t, envelope, "otpSent"))

	code := f.mailer.lastCode()
	require.NotEmpty(t, code)

	resp, envelope = f.postJSON(t, "/api/v1/auth/resource/2/whitelist", map[string]string{
		"email": "alice@example.com",
		"otp":   code,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
	session, _ := dataField(t, envelope, "session").(string)
	assert.NotEmpty(t, session)
}

// unavailableStore fails every read the way a down cluster would, with
// driver and host detail in the wrapped error.
type unavailableStore struct {
	repository.ResourceRepository
}

func (unavailableStore) GetResource(context.Context, int) (*models.Resource, error) {
	return nil, errors.New("failed to get resource: no hosts available, tried 10.0.0.5:9042")
}

func (unavailableStore) GetCustomization(context.Context, int) (*models.AuthCustomization, error) {
	return nil, errors.New("failed to get customization: no hosts available, tried 10.0.0.5:9042")
}

func TestServerErrorBodyHidesStoreDetail(t *testing.T) {
	f := newServerFixtureWithRepo(t, unavailableStore{})

	// End-user portal bootstrap and the admin customization read both hit
	// the failing store; neither 500 body may echo the store error.
	for _, path := range []string{
		"/api/v1/auth/resource/1",
		"/api/v1/resource/1/auth-customization",
	} {
		resp, err := http.Get(f.server.URL + path)
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		body := buf.String()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.NotContains(t, body, "10.0.0.5", path)
		assert.NotContains(t, body, "no hosts available", path)

		var envelope Response
		require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
		assert.False(t, envelope.Success)
		assert.Equal(t, "internal_error", envelope.Error, path)
	}
}

func TestSessionIntrospectionUnknownToken(t *testing.T) {
	f := newServerFixture(t)

	resp, envelope := f.getJSON(t, "/api/v1/auth/session/bogus-token")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, envelope.Success)
}

func TestMalformedBody(t *testing.T) {
	f := newServerFixture(t)
	f.seedPasswordResource(t, 1, "hunter2")

	resp, err := http.Post(f.server.URL+"/api/v1/auth/resource/1/password", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
