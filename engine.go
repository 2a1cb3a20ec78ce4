package devAuth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/devAuth/internal/audit"
	"github.com/MrEthical07/devAuth/internal/flows"
	"github.com/MrEthical07/devAuth/jwt"
	"github.com/MrEthical07/devAuth/password"
	"github.com/MrEthical07/devAuth/permission"
	"github.com/MrEthical07/devAuth/session"
	"github.com/MrEthical07/devAuth/store"
)

// Engine is the authentication and device-session core.
//
// An Engine is immutable after Build and every method is safe for concurrent use.
type Engine struct {
	config     Config
	roles      *permission.Catalog
	db         *store.DB
	users      *store.Users
	devices    *store.Devices
	sessions   *session.Store
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	hasher     *password.Migrating
	jwtManager *jwt.Manager
	logger     *slog.Logger
	dummyHash  string
	newUserID  func() string

	flows flows.Deps
}

func (e *Engine) initFlows() {
	hooks := flows.Hooks{
		Now:          time.Now,
		MetricInc:    func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:    e.emitAudit,
		Warn:         func(msg string, args ...any) { e.logger.Warn(msg, args...) },
		StoreTimeout: e.config.Database.OperationTimeout,
		CacheTimeout: e.config.Session.OperationTimeout,
		Metrics: flows.Metrics{
			LoginSuccess:      int(MetricLoginSuccess),
			LoginFailure:      int(MetricLoginFailure),
			LoginLocked:       int(MetricLoginLocked),
			LoginSuperseded:   int(MetricLoginSuperseded),
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterDuplicate: int(MetricRegisterDuplicate),
			ValidateSuccess:   int(MetricValidateSuccess),
			ValidateFailure:   int(MetricValidateFailure),
			CacheUnavailable:  int(MetricCacheUnavailable),
			SessionCreated:    int(MetricSessionCreated),
			SessionEvicted:    int(MetricSessionEvicted),
			DeviceTrusted:     int(MetricDeviceTrusted),
			DeviceRevoked:     int(MetricDeviceRevoked),
			Logout:            int(MetricLogout),
			LogoutAll:         int(MetricLogoutAll),
		},
		Events: flows.Events{
			LoginSuccess:      auditEventLoginSuccess,
			LoginFailure:      auditEventLoginFailure,
			RegisterSuccess:   auditEventRegisterSuccess,
			RegisterFailure:   auditEventRegisterFailure,
			DeviceTrusted:     auditEventDeviceTrusted,
			DeviceRevoked:     auditEventDeviceRevoked,
			Logout:            auditEventLogoutDevice,
			LogoutAll:         auditEventLogoutAll,
			CacheInconsistent: auditEventCacheInconsistent,
		},
		Errors: flows.Errors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidRequest:     ErrInvalidRequest,
			InvalidCredentials: ErrInvalidCredentials,
			UserNotFound:       ErrUserNotFound,
			AccountLocked:      ErrAccountLocked,
			AlreadyExists:      ErrAlreadyExists,
			InvalidToken:       ErrInvalidToken,
			DeviceNotFound:     ErrDeviceNotFound,
			CacheUnavailable:   ErrCacheUnavailable,
			StoreUnavailable:   ErrStoreUnavailable,
			LoginSuperseded:    ErrLoginSuperseded,
		},
	}

	e.flows = flows.Deps{
		Login: flows.LoginDeps{
			Hooks:              hooks,
			Users:              e.users,
			Devices:            e.devices,
			Cache:              e.sessions,
			Hasher:             e.hasher,
			Issue:              e.jwtManager.Issue,
			ResolvePermissions: e.roles.Resolve,
			ClientIP:           clientIPFromContext,
			DummyHash:          e.dummyHash,
			UpgradeOnLogin:     e.config.Password.UpgradeOnLogin,
		},
		Register: flows.RegisterDeps{
			Hooks:       hooks,
			Users:       e.users,
			Hasher:      e.hasher,
			NewUserID:   e.newUserID,
			DefaultRole: e.config.Account.DefaultRole,
		},
		Validate: flows.ValidateDeps{
			Hooks:   hooks,
			Parse:   e.jwtManager.Parse,
			Cache:   e.sessions,
			Devices: e.devices,
		},
		Revoke: flows.RevokeDeps{
			Hooks:   hooks,
			Devices: e.devices,
			Cache:   e.sessions,
		},
	}
}

// Close drains the audit dispatcher. It does not close the store or the
// Redis client; their owner does.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and latency histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Register creates an account with the configured default role and
// must_change_password set.
//
// It returns [ErrAlreadyExists] when the username or the email is taken
// (both compared case-sensitively) and [ErrInvalidRequest] for missing
// fields or a password below the minimum length.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	u, err := flows.RunRegister(ctx, flows.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, e.flows.Register)
	if err != nil {
		return nil, err
	}
	return toUser(u), nil
}

// Login verifies credentials and binds a freshly minted token to the device.
//
// The device row is created on first login and otherwise updated in place;
// any token previously issued to the same device stops validating. Errors:
// [ErrUserNotFound], [ErrInvalidCredentials], [ErrAccountLocked],
// [ErrInvalidRequest], [ErrStoreUnavailable], [ErrCacheUnavailable] and
// [ErrLoginSuperseded].
//
//	Performance: one password hash, one registry upsert, one cache script.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunLogin(ctx, flows.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Device: store.DeviceMeta{
			DeviceID:  req.Device.DeviceID,
			Name:      req.Device.Name,
			Type:      req.Device.Type,
			OS:        req.Device.OS,
			Browser:   req.Device.Browser,
			IPAddress: req.Device.IPAddress,
		},
	}, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Session:   res.Session,
		Device:    toDevice(res.Device),
	}, nil
}

// TrustDevice marks a device trusted. It has no effect on token validity.
func (e *Engine) TrustDevice(ctx context.Context, userID, deviceID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunTrustDevice(ctx, userID, deviceID, e.flows.Revoke)
}

// RevokeDevice deactivates a device so its token stops validating, and evicts
// its cached session. Unknown devices return [ErrDeviceNotFound].
func (e *Engine) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunRevokeDevice(ctx, userID, deviceID, e.flows.Revoke)
}

// Logout ends the session of one of userID's devices. Logging out an unknown
// device is a no-op.
func (e *Engine) Logout(ctx context.Context, userID, deviceID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, userID, deviceID, e.flows.Revoke)
}

// LogoutAllDevices deactivates every device of userID and evicts every cached
// session. It is idempotent.
func (e *Engine) LogoutAllDevices(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogoutAll(ctx, userID, e.flows.Revoke)
}

// ListDevices returns every device registered to userID, most recent login
// first, inactive ones included.
func (e *Engine) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	if e == nil || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	sctx, cancel := context.WithTimeout(ctx, e.config.Database.OperationTimeout)
	defer cancel()
	rows, err := e.devices.List(sctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Device, 0, len(rows))
	for i := range rows {
		out = append(out, toDevice(&rows[i]))
	}
	return out, nil
}

// Health pings the session cache and the store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}

	var h HealthStatus
	cctx, cancel := context.WithTimeout(ctx, e.config.Session.OperationTimeout)
	latency, err := e.sessions.Ping(cctx)
	cancel()
	h.CacheAvailable = err == nil
	h.CacheLatency = latency

	sctx, cancel := context.WithTimeout(ctx, e.config.Database.OperationTimeout)
	h.StoreAvailable = e.db.HealthCheck(sctx) == nil
	cancel()

	return h
}

func toUser(u *store.User) *User {
	return &User{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		Role:               u.Role,
		IsBlocked:          u.IsBlocked,
		MustChangePassword: u.MustChangePassword,
		EmailVerified:      u.EmailVerified,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func toDevice(d *store.Device) Device {
	return Device{
		ID:          d.ID,
		UserID:      d.UserID,
		DeviceID:    d.DeviceID,
		Name:        d.Name,
		Type:        d.Type,
		OS:          d.OS,
		Browser:     d.Browser,
		IPAddress:   d.IPAddress,
		IsActive:    d.IsActive,
		IsTrusted:   d.IsTrusted,
		LastLoginAt: d.LastLoginAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
