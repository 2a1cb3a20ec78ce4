package flows

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/devAuth/session"
	"github.com/MrEthical07/devAuth/store"
)

// UserStore is the credential store surface used by login and register.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*store.User, error)
	Create(ctx context.Context, u *store.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
}

// DeviceStore is the device registry surface used by the flows.
type DeviceStore interface {
	Find(ctx context.Context, userID, deviceID string) (*store.Device, error)
	UpsertOnLogin(ctx context.Context, userID string, meta store.DeviceMeta, tokenHash string, now time.Time) (*store.Device, error)
	Deactivate(ctx context.Context, userID, deviceID string, now time.Time) (*store.Device, error)
	DeactivateAll(ctx context.Context, userID string, now time.Time) (int64, error)
	Trust(ctx context.Context, userID, deviceID string, now time.Time) error
}

// SessionCache is the session cache surface used by the flows.
type SessionCache interface {
	Put(ctx context.Context, e session.Entry, ttl time.Duration) (bool, error)
	Get(ctx context.Context, userID, deviceID, presentedToken string) (*session.Session, error)
	EvictIfToken(ctx context.Context, userID, deviceID string, tokenHash [32]byte) (bool, error)
	EvictAll(ctx context.Context, userID string) (int, error)
}

// Errors carries the host-level sentinels the flows return.
type Errors struct {
	EngineNotReady     error
	InvalidRequest     error
	InvalidCredentials error
	UserNotFound       error
	AccountLocked      error
	AlreadyExists      error
	InvalidToken       error
	DeviceNotFound     error
	CacheUnavailable   error
	StoreUnavailable   error
	LoginSuperseded    error
}

// Metrics carries the metric IDs the flows increment.
type Metrics struct {
	LoginSuccess      int
	LoginFailure      int
	LoginLocked       int
	LoginSuperseded   int
	RegisterSuccess   int
	RegisterDuplicate int
	ValidateSuccess   int
	ValidateFailure   int
	CacheUnavailable  int
	SessionCreated    int
	SessionEvicted    int
	DeviceTrusted     int
	DeviceRevoked     int
	Logout            int
	LogoutAll         int
}

// Events carries the audit event names the flows emit.
type Events struct {
	LoginSuccess      string
	LoginFailure      string
	RegisterSuccess   string
	RegisterFailure   string
	DeviceTrusted     string
	DeviceRevoked     string
	Logout            string
	LogoutAll         string
	CacheInconsistent string
}

// Hooks are the side channels every flow reports through. Nil members are
// replaced with no-ops.
type Hooks struct {
	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, deviceID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)

	// StoreTimeout and CacheTimeout bound each store and cache call.
	StoreTimeout time.Duration
	CacheTimeout time.Duration

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Register RegisterDeps
	Validate ValidateDeps
	Revoke   RevokeDeps
}

func (h *Hooks) normalize() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
}

func (h *Hooks) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, h.StoreTimeout)
}

func (h *Hooks) cacheCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, h.CacheTimeout)
}

// storeErr maps a registry or credential store failure. notFound is returned
// for store.ErrNotFound; everything else is unavailability.
func (h *Hooks) storeErr(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) && notFound != nil {
		return notFound
	}
	return fmt.Errorf("%w: %v", h.Errors.StoreUnavailable, err)
}

// withTimeout never extends an earlier caller deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func encodeTokenHash(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

func decodeTokenHash(s string) ([32]byte, bool) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(out) {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

func tokenHashEqual(stored string, presented [32]byte) bool {
	want := encodeTokenHash(presented)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(want)) == 1
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
