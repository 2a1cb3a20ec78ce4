package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	devAuth "github.com/MrEthical07/devAuth"
)

type fakeValidator struct {
	token string
	sess  *devAuth.Session
}

func (f *fakeValidator) ValidateToken(ctx context.Context, token string) (*devAuth.Session, error) {
	if token != f.token {
		return nil, devAuth.ErrInvalidToken
	}
	return f.sess, nil
}

func TestGuardRejectsMissingAndInvalidTokens(t *testing.T) {
	v := &fakeValidator{token: "good", sess: &devAuth.Session{UserID: "u1", DeviceID: "d1"}}
	h := Guard(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestGuardStoresSession(t *testing.T) {
	want := &devAuth.Session{UserID: "u1", DeviceID: "d1"}
	v := &fakeValidator{token: "good", sess: want}

	var got *devAuth.Session
	h := Guard(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got != want {
		t.Fatalf("session not propagated: %+v", got)
	}
}

func TestGuardNilValidator(t *testing.T) {
	h := Guard(nil)(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequirePermission("device.manage")(ok)

	cases := []struct {
		name string
		sess *devAuth.Session
		want int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"missing permission", &devAuth.Session{Permissions: []string{"session.read"}}, http.StatusForbidden},
		{"granted", &devAuth.Session{Permissions: []string{"session.read", "device.manage"}}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.sess != nil {
				req = req.WithContext(ContextWithSession(req.Context(), tc.sess))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestClientIPStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	if got := clientIP(req); got != "192.0.2.10" {
		t.Fatalf("expected host only, got %q", got)
	}

	req.RemoteAddr = "pipe"
	if got := clientIP(req); got != "pipe" {
		t.Fatalf("expected raw remote addr, got %q", got)
	}
}
