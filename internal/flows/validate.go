package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/devAuth/jwt"
	"github.com/MrEthical07/devAuth/session"
	"github.com/MrEthical07/devAuth/store"
)

// ValidateFailure classifies why a token was rejected. Callers only ever see
// Errors.InvalidToken; the kind feeds logs and audit.
type ValidateFailure int

const (
	ValidateFailureNone ValidateFailure = iota
	ValidateFailureToken
	ValidateFailureCacheMiss
	ValidateFailureCacheUnavailable
	ValidateFailureSessionMismatch
	ValidateFailureDeviceMissing
	ValidateFailureDeviceInactive
	ValidateFailureTokenSuperseded
	ValidateFailureStoreUnavailable
)

var validateFailureNames = [...]string{
	ValidateFailureNone:             "none",
	ValidateFailureToken:            "token_invalid",
	ValidateFailureCacheMiss:        "session_miss",
	ValidateFailureCacheUnavailable: "cache_unavailable",
	ValidateFailureSessionMismatch:  "session_mismatch",
	ValidateFailureDeviceMissing:    "device_missing",
	ValidateFailureDeviceInactive:   "device_inactive",
	ValidateFailureTokenSuperseded:  "token_superseded",
	ValidateFailureStoreUnavailable: "store_unavailable",
}

func (f ValidateFailure) String() string {
	if f < 0 || int(f) >= len(validateFailureNames) {
		return "unknown"
	}
	return validateFailureNames[f]
}

// ValidateResult returns either the cached session or a classified failure.
type ValidateResult struct {
	Failure ValidateFailure
	Err     error
	Session *session.Session
	// Evicted is set when the failure removed the presented token's cache slot.
	Evicted bool
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Hooks

	Parse   func(string) (*jwt.Claims, error)
	Cache   SessionCache
	Devices DeviceStore
}

// RunValidate checks token against the signature, the session cache and the
// device registry, in that order, failing closed at the first miss.
//
// When the registry disowns a token whose cache slot still matched, the slot
// is removed by compare-and-delete so a newer session in it survives.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	deps.normalize()
	if deps.Parse == nil || deps.Cache == nil || deps.Devices == nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: deps.Errors.EngineNotReady}
	}

	claims, err := deps.Parse(token)
	if err != nil {
		return deps.fail(ValidateFailureToken)
	}
	userID, deviceID := claims.Subject, claims.DeviceID

	cctx, cancel := deps.cacheCtx(ctx)
	sess, err := deps.Cache.Get(cctx, userID, deviceID, token)
	cancel()
	if err != nil {
		if errors.Is(err, session.ErrUnavailable) {
			deps.MetricInc(deps.Metrics.CacheUnavailable)
			return deps.fail(ValidateFailureCacheUnavailable)
		}
		return deps.fail(ValidateFailureCacheMiss)
	}
	if sess.UserID != userID || sess.DeviceID != deviceID {
		return deps.fail(ValidateFailureSessionMismatch)
	}

	tokenHash := session.HashToken(token)

	sctx, cancel := deps.storeCtx(ctx)
	device, err := deps.Devices.Find(sctx, userID, deviceID)
	cancel()

	var failure ValidateFailure
	switch {
	case errors.Is(err, store.ErrNotFound):
		failure = ValidateFailureDeviceMissing
	case err != nil:
		// a store outage says nothing about this token; keep the slot
		return deps.fail(ValidateFailureStoreUnavailable)
	case !device.IsActive:
		failure = ValidateFailureDeviceInactive
	case !tokenHashEqual(device.TokenHash, tokenHash):
		failure = ValidateFailureTokenSuperseded
	}

	if failure != ValidateFailureNone {
		res := deps.fail(failure)
		res.Evicted = deps.evict(ctx, userID, deviceID, tokenHash, failure)
		return res
	}

	deps.MetricInc(deps.Metrics.ValidateSuccess)
	return ValidateResult{Session: sess}
}

func (deps *ValidateDeps) fail(kind ValidateFailure) ValidateResult {
	deps.MetricInc(deps.Metrics.ValidateFailure)
	return ValidateResult{Failure: kind, Err: deps.Errors.InvalidToken}
}

func (deps *ValidateDeps) evict(ctx context.Context, userID, deviceID string, tokenHash [32]byte, reason ValidateFailure) bool {
	cctx, cancel := deps.cacheCtx(ctx)
	removed, err := deps.Cache.EvictIfToken(cctx, userID, deviceID, tokenHash)
	cancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.CacheUnavailable)
		deps.Warn("devauth: evicting disowned session failed", "user_id", userID, "device_id", deviceID, "error", err)
		return false
	}
	if removed {
		deps.MetricInc(deps.Metrics.SessionEvicted)
		deps.EmitAudit(ctx, deps.Events.CacheInconsistent, false, userID, deviceID, nil, func() map[string]string {
			return map[string]string{"reason": reason.String()}
		})
	}
	return removed
}
