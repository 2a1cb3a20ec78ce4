package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/devAuth/password"
	"github.com/MrEthical07/devAuth/store"
)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Hooks

	Users       UserStore
	Hasher      password.Hasher
	NewUserID   func() string
	DefaultRole string
}

// RunRegister creates an account. Username and email are compared
// case-sensitively; a collision on either is Errors.AlreadyExists.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (*store.User, error) {
	deps.normalize()
	if deps.Users == nil || deps.Hasher == nil || deps.NewUserID == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, deps.Errors.InvalidRequest
	}
	if len(in.Password) < deps.Hasher.MinLength() {
		return nil, deps.Errors.InvalidRequest
	}

	hash, err := deps.Hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return nil, deps.Errors.InvalidRequest
		}
		return nil, err
	}

	now := deps.Now()
	u := &store.User{
		ID:                 deps.NewUserID(),
		Username:           in.Username,
		Email:              in.Email,
		PasswordHash:       hash,
		Role:               deps.DefaultRole,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	sctx, cancel := deps.storeCtx(ctx)
	err = deps.Users.Create(sctx, u)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", deps.Errors.AlreadyExists, func() map[string]string {
				return map[string]string{"username": in.Username}
			})
			return nil, deps.Errors.AlreadyExists
		}
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", "", err, nil)
		return nil, deps.storeErr(err, nil)
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, u.ID, "", nil, nil)
	return u, nil
}
