package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devAuth "github.com/MrEthical07/devAuth"
)

type fakeService struct {
	registerErr error
	loginErr    error
	revokeErr   error
	health      devAuth.HealthStatus

	validToken string
	session    *devAuth.Session

	loggedOut    []string
	loggedOutAll []string
	trusted      []string
}

func (f *fakeService) Register(_ context.Context, req devAuth.RegisterRequest) (*devAuth.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &devAuth.User{ID: "u1", Username: req.Username, Email: req.Email, Role: "user", MustChangePassword: true}, nil
}

func (f *fakeService) Login(_ context.Context, req devAuth.LoginRequest) (*devAuth.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &devAuth.LoginResult{
		Token:     "tok-" + req.Device.DeviceID,
		ExpiresAt: time.Now().Add(time.Hour),
		Device:    devAuth.Device{DeviceID: req.Device.DeviceID, IsActive: true},
	}, nil
}

func (f *fakeService) ValidateToken(_ context.Context, token string) (*devAuth.Session, error) {
	if token != f.validToken {
		return nil, devAuth.ErrInvalidToken
	}
	return f.session, nil
}

func (f *fakeService) TrustDevice(_ context.Context, userID, deviceID string) error {
	f.trusted = append(f.trusted, userID+"/"+deviceID)
	return nil
}

func (f *fakeService) RevokeDevice(_ context.Context, userID, deviceID string) error {
	return f.revokeErr
}

func (f *fakeService) Logout(_ context.Context, userID, deviceID string) error {
	f.loggedOut = append(f.loggedOut, userID+"/"+deviceID)
	return nil
}

func (f *fakeService) LogoutAllDevices(_ context.Context, userID string) error {
	f.loggedOutAll = append(f.loggedOutAll, userID)
	return nil
}

func (f *fakeService) ListDevices(_ context.Context, userID string) ([]devAuth.Device, error) {
	return []devAuth.Device{
		{DeviceID: "laptop", IsActive: false},
		{DeviceID: "phone", IsActive: true, IsTrusted: true},
	}, nil
}

func (f *fakeService) Health(context.Context) devAuth.HealthStatus {
	return f.health
}

func newAuthedFake() *fakeService {
	return &fakeService{
		validToken: "good",
		session:    &devAuth.Session{UserID: "u1", Username: "alice", DeviceID: "phone", Roles: []string{"user"}},
		health:     devAuth.HealthStatus{CacheAvailable: true, StoreAvailable: true},
	}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthedFake()
	h := NewRouter(RouterDeps{Service: svc})

	rec := do(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var user userResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.MustChangePassword)

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "pw", "device": map[string]string{"device_id": "laptop"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))
	assert.Equal(t, "tok-laptop", login.Token)
	assert.True(t, login.Device.IsActive)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	h := NewRouter(RouterDeps{Service: newAuthedFake()})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "a", "surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEngineErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{devAuth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{devAuth.ErrUserNotFound, http.StatusUnauthorized, "invalid_credentials"},
		{devAuth.ErrAccountLocked, http.StatusForbidden, "account_locked"},
		{devAuth.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{devAuth.ErrLoginSuperseded, http.StatusConflict, "login_superseded"},
		{devAuth.ErrCacheUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("%w: db down", devAuth.ErrStoreUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := newAuthedFake()
			svc.loginErr = tc.err
			h := NewRouter(RouterDeps{Service: svc})

			rec := do(t, h, http.MethodPost, "/v1/auth/login", "", map[string]any{
				"username": "alice", "password": "pw", "device": map[string]string{"device_id": "laptop"},
			})
			require.Equal(t, tc.want, rec.Code)
			var body errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.code, body.Code)
		})
	}

	svc := newAuthedFake()
	svc.registerErr = devAuth.ErrAlreadyExists
	rec := do(t, NewRouter(RouterDeps{Service: svc}), http.MethodPost, "/v1/auth/register", "", map[string]string{"username": "a"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	h := NewRouter(RouterDeps{Service: newAuthedFake()})

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/v1/auth/session"},
		{http.MethodPost, "/v1/auth/logout"},
		{http.MethodPost, "/v1/auth/logout-all"},
		{http.MethodGet, "/v1/devices"},
		{http.MethodPost, "/v1/devices/phone/trust"},
		{http.MethodDelete, "/v1/devices/phone"},
	} {
		rec := do(t, h, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s without token", route.method, route.path)
		rec = do(t, h, route.method, route.path, "stale", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s with stale token", route.method, route.path)
	}
}

func TestSessionScopedRoutesActOnCaller(t *testing.T) {
	svc := newAuthedFake()
	h := NewRouter(RouterDeps{Service: svc})

	rec := do(t, h, http.MethodGet, "/v1/auth/session", "good", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "phone", sess.DeviceID)

	rec = do(t, h, http.MethodPost, "/v1/auth/logout", "good", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u1/phone"}, svc.loggedOut)

	rec = do(t, h, http.MethodPost, "/v1/auth/logout-all", "good", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u1"}, svc.loggedOutAll)

	rec = do(t, h, http.MethodPost, "/v1/devices/laptop/trust", "good", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u1/laptop"}, svc.trusted)
}

func TestListAndRevokeDevices(t *testing.T) {
	svc := newAuthedFake()
	h := NewRouter(RouterDeps{Service: svc})

	rec := do(t, h, http.MethodGet, "/v1/devices", "good", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Devices []deviceResponse `json:"devices"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Devices, 2)
	assert.False(t, body.Devices[0].IsActive)
	assert.True(t, body.Devices[1].IsTrusted)

	rec = do(t, h, http.MethodDelete, "/v1/devices/phone", "good", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.revokeErr = devAuth.ErrDeviceNotFound
	rec = do(t, h, http.MethodDelete, "/v1/devices/ghost", "good", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	svc := newAuthedFake()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("devauth_login_success_total 1\n"))
	})
	h := NewRouter(RouterDeps{Service: svc, Metrics: metrics})

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.health.CacheAvailable = false
	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var hr healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hr))
	assert.Equal(t, "degraded", hr.Status)

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "devauth_login_success_total")
}
