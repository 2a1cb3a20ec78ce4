package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/devAuth/store"
)

// RevokeDeps captures trust, revoke and logout dependencies.
type RevokeDeps struct {
	Hooks

	Devices DeviceStore
	Cache   SessionCache
}

// RunTrustDevice marks a device trusted. Trust never touches the cache and
// does not change whether the device's token validates.
func RunTrustDevice(ctx context.Context, userID, deviceID string, deps RevokeDeps) error {
	deps.normalize()
	if deps.Devices == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" || deviceID == "" {
		return deps.Errors.InvalidRequest
	}

	sctx, cancel := deps.storeCtx(ctx)
	err := deps.Devices.Trust(sctx, userID, deviceID, deps.Now())
	cancel()
	if err != nil {
		return deps.storeErr(err, deps.Errors.DeviceNotFound)
	}

	deps.MetricInc(deps.Metrics.DeviceTrusted)
	deps.EmitAudit(ctx, deps.Events.DeviceTrusted, true, userID, deviceID, nil, nil)
	return nil
}

// RunRevokeDevice deactivates a device and evicts the session bound to the
// token it held. An unknown device is Errors.DeviceNotFound.
func RunRevokeDevice(ctx context.Context, userID, deviceID string, deps RevokeDeps) error {
	deps.normalize()
	if deps.Devices == nil || deps.Cache == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" || deviceID == "" {
		return deps.Errors.InvalidRequest
	}

	if err := deps.deactivate(ctx, userID, deviceID); err != nil {
		return deps.storeErr(err, deps.Errors.DeviceNotFound)
	}

	deps.MetricInc(deps.Metrics.DeviceRevoked)
	deps.EmitAudit(ctx, deps.Events.DeviceRevoked, true, userID, deviceID, nil, nil)
	return nil
}

// RunLogout is RunRevokeDevice with void semantics: an unknown device is
// not an error.
func RunLogout(ctx context.Context, userID, deviceID string, deps RevokeDeps) error {
	deps.normalize()
	if deps.Devices == nil || deps.Cache == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" || deviceID == "" {
		return deps.Errors.InvalidRequest
	}

	if err := deps.deactivate(ctx, userID, deviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return deps.storeErr(err, nil)
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, userID, deviceID, nil, nil)
	return nil
}

// RunLogoutAll deactivates every device of userID and drops every cached
// session. Repeating it is harmless.
func RunLogoutAll(ctx context.Context, userID string, deps RevokeDeps) error {
	deps.normalize()
	if deps.Devices == nil || deps.Cache == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		return deps.Errors.InvalidRequest
	}

	sctx, cancel := deps.storeCtx(ctx)
	deactivated, err := deps.Devices.DeactivateAll(sctx, userID, deps.Now())
	cancel()
	if err != nil {
		return deps.storeErr(err, nil)
	}

	cctx, cancel := deps.cacheCtx(ctx)
	evicted, err := deps.Cache.EvictAll(cctx, userID)
	cancel()
	if err != nil {
		// the registry already rejects every token of this user
		deps.MetricInc(deps.Metrics.CacheUnavailable)
		deps.Warn("devauth: logout-all cache eviction failed", "user_id", userID, "error", err)
	}
	for i := 0; i < evicted; i++ {
		deps.MetricInc(deps.Metrics.SessionEvicted)
	}

	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"devices_deactivated": formatInt(deactivated),
			"sessions_evicted":    formatInt(int64(evicted)),
		}
	})
	return nil
}

// deactivate flips the row inactive, then evicts the slot only while it still
// holds the token the row was bound to. A cache failure is logged, not
// returned: validation already rejects an inactive device.
func (deps *RevokeDeps) deactivate(ctx context.Context, userID, deviceID string) error {
	sctx, cancel := deps.storeCtx(ctx)
	device, err := deps.Devices.Deactivate(sctx, userID, deviceID, deps.Now())
	cancel()
	if err != nil {
		return err
	}

	tokenHash, ok := decodeTokenHash(device.TokenHash)
	if !ok {
		deps.Warn("devauth: device row has unreadable token hash", "user_id", userID, "device_id", deviceID)
		return nil
	}

	cctx, cancel := deps.cacheCtx(ctx)
	removed, err := deps.Cache.EvictIfToken(cctx, userID, deviceID, tokenHash)
	cancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.CacheUnavailable)
		deps.Warn("devauth: session eviction failed", "user_id", userID, "device_id", deviceID, "error", err)
		return nil
	}
	if removed {
		deps.MetricInc(deps.Metrics.SessionEvicted)
	}
	return nil
}
