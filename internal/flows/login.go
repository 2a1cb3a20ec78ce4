package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/devAuth/jwt"
	"github.com/MrEthical07/devAuth/password"
	"github.com/MrEthical07/devAuth/session"
	"github.com/MrEthical07/devAuth/store"
)

// DummyPassword is the plaintext behind LoginDeps.DummyHash.
const DummyPassword = "devauth-dummy-password"

// LoginInput is the flow-local login request.
type LoginInput struct {
	Username string
	Password string
	Device   store.DeviceMeta
}

// LoginResult is the flow-local login response.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   *session.Session
	Device    *store.Device
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks

	Users   UserStore
	Devices DeviceStore
	Cache   SessionCache
	Hasher  password.Hasher

	Issue              func(userID, username, deviceID string) (string, *jwt.Claims, error)
	ResolvePermissions func(roles ...string) []string
	ClientIP           func(context.Context) string

	// DummyHash is a hash of DummyPassword, verified when the user does not
	// exist so both paths cost one password hash.
	DummyHash      string
	UpgradeOnLogin bool
}

// RunLogin verifies credentials, mints a token, binds it to the device row
// and publishes the session to the cache.
//
// The token leaves this function only after both the registry upsert and the
// cache write succeeded. When a newer login for the same device already
// published its session, the result is Errors.LoginSuperseded.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginResult, error) {
	deps.normalize()
	if deps.Users == nil || deps.Devices == nil || deps.Cache == nil || deps.Hasher == nil || deps.Issue == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if in.Username == "" || in.Password == "" || in.Device.DeviceID == "" {
		return nil, deps.Errors.InvalidRequest
	}
	if in.Device.IPAddress == "" && deps.ClientIP != nil {
		in.Device.IPAddress = deps.ClientIP(ctx)
	}

	user, err := lookupUser(ctx, in.Username, &deps)
	if err != nil {
		return nil, err
	}

	if err := verifyPassword(ctx, user, in, &deps); err != nil {
		return nil, err
	}

	if user.IsBlocked {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, in.Device.DeviceID, deps.Errors.AccountLocked, nil)
		return nil, deps.Errors.AccountLocked
	}

	token, claims, err := deps.Issue(user.ID, user.Username, in.Device.DeviceID)
	if err != nil {
		return nil, err
	}
	tokenHash := session.HashToken(token)
	now := deps.Now()

	sctx, cancel := deps.storeCtx(ctx)
	device, err := deps.Devices.UpsertOnLogin(sctx, user.ID, in.Device, encodeTokenHash(tokenHash), now)
	cancel()
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, in.Device.DeviceID, err, nil)
		return nil, deps.storeErr(err, nil)
	}

	roles := []string{user.Role}
	var perms []string
	if deps.ResolvePermissions != nil {
		perms = deps.ResolvePermissions(roles...)
	}
	sess := &session.Session{
		UserID:      user.ID,
		Username:    user.Username,
		DeviceID:    device.DeviceID,
		Roles:       roles,
		Permissions: perms,
		Device: session.DeviceSnapshot{
			Name:      device.Name,
			Type:      device.Type,
			OS:        device.OS,
			Browser:   device.Browser,
			IPAddress: device.IPAddress,
		},
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}

	ttl := claims.ExpiresAt.Time.Sub(now)
	cctx, cancel := deps.cacheCtx(ctx)
	stored, err := deps.Cache.Put(cctx, session.Entry{
		Session:   sess,
		TokenHash: tokenHash,
		Version:   device.TokenVersion,
	}, ttl)
	cancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.CacheUnavailable)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, device.DeviceID, err, nil)
		return nil, deps.Errors.CacheUnavailable
	}
	if !stored {
		deps.MetricInc(deps.Metrics.LoginSuperseded)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, device.DeviceID, deps.Errors.LoginSuperseded, nil)
		return nil, deps.Errors.LoginSuperseded
	}

	upgradePassword(ctx, user, in.Password, &deps)

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, device.DeviceID, nil, func() map[string]string {
		return map[string]string{
			"token_version": formatInt(device.TokenVersion),
		}
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Session:   sess,
		Device:    device,
	}, nil
}

func lookupUser(ctx context.Context, username string, deps *LoginDeps) (*store.User, error) {
	sctx, cancel := deps.storeCtx(ctx)
	user, err := deps.Users.GetByUsername(sctx, username)
	cancel()
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, deps.storeErr(err, nil)
	}

	if deps.DummyHash != "" {
		_, _ = deps.Hasher.Verify(DummyPassword, deps.DummyHash)
	}
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", deps.Errors.UserNotFound, func() map[string]string {
		return map[string]string{"username": username}
	})
	return nil, deps.Errors.UserNotFound
}

func verifyPassword(ctx context.Context, user *store.User, in LoginInput, deps *LoginDeps) error {
	ok, err := deps.Hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		deps.Warn("devauth: stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, in.Device.DeviceID, deps.Errors.InvalidCredentials, nil)
		return deps.Errors.InvalidCredentials
	}
	return nil
}

// upgradePassword rewrites the stored hash with current parameters. Failures
// are logged; they never fail a login that already succeeded.
func upgradePassword(ctx context.Context, user *store.User, plain string, deps *LoginDeps) {
	if !deps.UpgradeOnLogin {
		return
	}
	needs, err := deps.Hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := deps.Hasher.Hash(plain)
	if err != nil {
		deps.Warn("devauth: password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	sctx, cancel := deps.storeCtx(ctx)
	defer cancel()
	if err := deps.Users.UpdatePasswordHash(sctx, user.ID, newHash, deps.Now()); err != nil {
		deps.Warn("devauth: password hash upgrade failed", "user_id", user.ID, "error", err)
	}
}
