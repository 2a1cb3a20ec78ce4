package devAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/devAuth/store"
)

type countingSink struct {
	count atomic.Uint64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, e AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *captureSink) all() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

func (s *captureSink) byType(eventType string) []AuditEvent {
	var out []AuditEvent
	for _, e := range s.all() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	h := newHarnessWithSink(t, sink, func(cfg *Config) {
		cfg.Audit.Enabled = false
	})

	h.register(t, "alice", "correct-password-123")
	h.login(t, "alice", "correct-password-123", "laptop")
	h.engine.Close()

	if sink.count.Load() != 0 {
		t.Fatalf("expected no sink calls, got %d", sink.count.Load())
	}
	if h.engine.AuditDropped() != 0 {
		t.Fatalf("expected no drops, got %d", h.engine.AuditDropped())
	}
}

func TestAuditLoginSuccessCarriesRequestContext(t *testing.T) {
	sink := &captureSink{}
	h := newHarnessWithSink(t, sink, nil)
	u := h.register(t, "alice", "correct-password-123")

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.4"), "curl/8.5")
	if _, err := h.engine.Login(ctx, LoginRequest{
		Username: "alice",
		Password: "correct-password-123",
		Device:   DeviceInfo{DeviceID: "laptop"},
	}); err != nil {
		t.Fatalf("login: %v", err)
	}
	h.engine.Close()

	events := sink.byType(auditEventLoginSuccess)
	if len(events) != 1 {
		t.Fatalf("expected one login_success event, got %d", len(events))
	}
	e := events[0]
	if e.UserID != u.ID || e.DeviceID != "laptop" || !e.Success {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.IP != "198.51.100.4" {
		t.Fatalf("expected client IP, got %q", e.IP)
	}
	if e.Metadata["user_agent"] != "curl/8.5" {
		t.Fatalf("expected user agent metadata, got %v", e.Metadata)
	}
	if e.Timestamp.IsZero() || e.Timestamp.After(time.Now().Add(time.Second)) {
		t.Fatalf("bad timestamp %v", e.Timestamp)
	}

	if len(sink.byType(auditEventRegisterSuccess)) != 1 {
		t.Fatal("expected one account_creation_success event")
	}
}

func TestAuditFailureEventsUseStableCodes(t *testing.T) {
	sink := &captureSink{}
	h := newHarnessWithSink(t, sink, nil)
	h.register(t, "alice", "correct-password-123")
	ctx := context.Background()

	_, _ = h.engine.Login(ctx, LoginRequest{Username: "alice", Password: "nope", Device: DeviceInfo{DeviceID: "laptop"}})
	_, _ = h.engine.Login(ctx, LoginRequest{Username: "ghost", Password: "nope", Device: DeviceInfo{DeviceID: "laptop"}})
	_, _ = h.engine.Register(ctx, RegisterRequest{Username: "alice", Email: "x@example.com", Password: "another-password"})
	h.engine.Close()

	failures := sink.byType(auditEventLoginFailure)
	if len(failures) != 2 {
		t.Fatalf("expected two login_failure events, got %d", len(failures))
	}
	codes := map[string]bool{}
	for _, e := range failures {
		if e.Success {
			t.Fatal("failure event marked successful")
		}
		codes[e.Error] = true
	}
	if !codes[string(auditErrInvalidCredentials)] || !codes[string(auditErrUserNotFound)] {
		t.Fatalf("unexpected failure codes %v", codes)
	}

	dup := sink.byType(auditEventRegisterFailure)
	if len(dup) != 1 || dup[0].Error != string(auditErrDuplicate) {
		t.Fatalf("expected duplicate registration event, got %+v", dup)
	}
}

func TestAuditDeviceLifecycleEvents(t *testing.T) {
	sink := &captureSink{}
	h := newHarnessWithSink(t, sink, nil)
	u := h.register(t, "alice", "correct-password-123")
	ctx := context.Background()

	h.login(t, "alice", "correct-password-123", "laptop")
	h.login(t, "alice", "correct-password-123", "phone")
	if err := h.engine.TrustDevice(ctx, u.ID, "laptop"); err != nil {
		t.Fatalf("trust: %v", err)
	}
	if err := h.engine.RevokeDevice(ctx, u.ID, "laptop"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := h.engine.Logout(ctx, u.ID, "phone"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := h.engine.LogoutAllDevices(ctx, u.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	h.engine.Close()

	for _, typ := range []string{auditEventDeviceTrusted, auditEventDeviceRevoked, auditEventLogoutDevice, auditEventLogoutAll} {
		if got := len(sink.byType(typ)); got != 1 {
			t.Fatalf("expected one %s event, got %d", typ, got)
		}
	}
}

func TestAuditCacheInconsistencyIsRecorded(t *testing.T) {
	sink := &captureSink{}
	h := newHarnessWithSink(t, sink, nil)
	u := h.register(t, "alice", "correct-password-123")
	ctx := context.Background()

	res := h.login(t, "alice", "correct-password-123", "laptop")
	if _, err := store.NewDevices(h.db).Deactivate(ctx, u.ID, "laptop", time.Now()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	h.mustReject(t, res.Token)
	h.engine.Close()

	events := sink.byType(auditEventCacheInconsistent)
	if len(events) != 1 {
		t.Fatalf("expected one inconsistency event, got %d", len(events))
	}
	if events[0].Metadata["reason"] != "device_inactive" {
		t.Fatalf("unexpected reason %v", events[0].Metadata)
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	sink := NewJSONWriterSink(&lockedWriter{mu: &mu, w: &buf})

	h := newHarnessWithSink(t, sink, nil)
	h.register(t, "alice", "correct-password-123")
	h.login(t, "alice", "correct-password-123", "laptop")
	h.engine.Close()

	mu.Lock()
	defer mu.Unlock()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		if _, ok := decoded["event_type"]; !ok {
			t.Fatalf("missing event_type in %q", line)
		}
	}
}

func TestAuditDispatcherCloseIdempotent(t *testing.T) {
	h := newHarnessWithSink(t, &captureSink{}, nil)
	h.engine.Close()
	h.engine.Close()

	// emitting after close must not panic
	h.engine.emitAudit(context.Background(), auditEventLogoutAll, true, "u", "", nil, nil)
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := &captureSink{}
	h := newHarnessWithSink(t, sink, nil)
	const pw = "super-secret-password-42"
	u := h.register(t, "alice", pw)
	res := h.login(t, "alice", pw, "laptop")
	_, _ = h.engine.Login(context.Background(), LoginRequest{Username: "alice", Password: "wrong-" + pw, Device: DeviceInfo{DeviceID: "laptop"}})
	h.engine.Close()

	hash := storedPasswordHash(t, h, u.ID)
	for _, e := range sink.all() {
		raw, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		s := string(raw)
		for _, secret := range []string{pw, res.Token, hash} {
			if strings.Contains(s, secret) {
				t.Fatalf("audit event %s leaks a secret", e.EventType)
			}
		}
	}
}

func TestBuilderAuditSinkEnablesDispatcher(t *testing.T) {
	b := New().WithAuditSink(&captureSink{})
	if !b.config.Audit.Enabled {
		t.Fatal("WithAuditSink should enable auditing")
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func storedPasswordHash(t *testing.T, h *harness, userID string) string {
	t.Helper()
	u, err := store.NewUsers(h.db).GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u.PasswordHash
}
