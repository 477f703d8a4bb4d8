package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthService struct {
	token string
	user  *models.User
}

func (f *fakeAuthService) Register(context.Context, string, string, string) (*models.User, string, error) {
	panic("not used")
}

func (f *fakeAuthService) Login(context.Context, string, string) (*models.User, string, error) {
	panic("not used")
}

func (f *fakeAuthService) VerifyToken(_ context.Context, token string) (*models.User, error) {
	if token == f.token {
		return f.user, nil
	}
	return nil, apierrors.Auth("Invalid or expired token.")
}

func (f *fakeAuthService) GetUserByID(context.Context, uuid.UUID) (*models.User, error) {
	panic("not used")
}

type fakeKeyService struct {
	key     *models.APIKey
	usage   int
	usageMu sync.Mutex
}

func (f *fakeKeyService) GenerateKey() (string, error) { panic("not used") }

func (f *fakeKeyService) CreateKey(context.Context, uuid.UUID, string, *models.PermissionSet, int) (*models.APIKey, error) {
	panic("not used")
}

func (f *fakeKeyService) ListKeys(context.Context, uuid.UUID) ([]models.APIKey, error) {
	panic("not used")
}

func (f *fakeKeyService) UpdateKey(context.Context, uuid.UUID, uuid.UUID, *string, *bool) (*models.APIKey, error) {
	panic("not used")
}

func (f *fakeKeyService) RevokeKey(context.Context, uuid.UUID, uuid.UUID) error { panic("not used") }

func (f *fakeKeyService) VerifyKey(_ context.Context, rawKey string) (*models.APIKey, error) {
	if f.key != nil && f.key.Key == rawKey {
		return f.key, nil
	}
	return nil, apierrors.Auth("Invalid API key.")
}

func (f *fakeKeyService) RecordUsage(_ context.Context, keyID uuid.UUID) error {
	f.usageMu.Lock()
	defer f.usageMu.Unlock()
	f.usage++
	return nil
}

func (f *fakeKeyService) CountActiveKeys(context.Context, uuid.UUID) (int64, error) {
	panic("not used")
}

type fakeCache struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[string]int64)}
}

func (f *fakeCache) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCache) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testKey(perMinute int) *models.APIKey {
	return &models.APIKey{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Key:         "cp_testkey",
		Name:        "test",
		IsActive:    true,
		Permissions: models.PermissionSet{Analyze: true},
		RateLimit:   models.RateLimitPolicy{RequestsPerMinute: perMinute, RequestsPerDay: 1000},
	}
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	handler := AuthMiddleware(&fakeAuthService{})(okHandler())

	req := httptest.NewRequest("GET", "/me", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestAuthMiddlewarePassesUser(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "alice", IsActive: true}
	auth := &fakeAuthService{token: "good-token", user: user}

	var seen *models.User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = services.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(auth)(inner)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	handler := AuthMiddleware(&fakeAuthService{token: "good-token"})(okHandler())

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPIKeyMiddlewareMissingKey(t *testing.T) {
	keys := &fakeKeyService{}
	handler := APIKeyMiddleware(keys, "")(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/verify", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, keys.usage)
}

func TestAPIKeyMiddlewareRecordsUsage(t *testing.T) {
	keys := &fakeKeyService{key: testKey(60)}

	var seen *models.APIKey
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = services.APIKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := APIKeyMiddleware(keys, "")(inner)

	req := httptest.NewRequest("GET", "/api/v1/verify", nil)
	req.Header.Set("X-API-Key", "cp_testkey")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, keys.usage)
	require.NotNil(t, seen)
	assert.Equal(t, keys.key.ID, seen.ID)
}

func TestAPIKeyMiddlewarePermissionDenied(t *testing.T) {
	keys := &fakeKeyService{key: testKey(60)} // only analyze granted
	handler := APIKeyMiddleware(keys, "batch")(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/verify", nil)
	req.Header.Set("X-API-Key", "cp_testkey")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	// a denied request never counts against the key
	assert.Zero(t, keys.usage)
}

func TestRateLimitEnforcesMinuteWindow(t *testing.T) {
	cache := newFakeCache()
	rl := NewRateLimiter(cache)
	handler := rl.RateLimit(okHandler())
	key := testKey(2)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/v1/verify", nil)
		req = req.WithContext(services.WithAPIKeyContext(req.Context(), key))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := do()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestRateLimitFailsOpen(t *testing.T) {
	cache := newFakeCache()
	cache.err = errors.New("redis down")
	rl := NewRateLimiter(cache)
	handler := rl.RateLimit(okHandler())
	key := testKey(1)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/v1/verify", nil)
		req = req.WithContext(services.WithAPIKeyContext(req.Context(), key))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimitWithoutKeyContext(t *testing.T) {
	rl := NewRateLimiter(newFakeCache())
	handler := rl.RateLimit(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/verify", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
