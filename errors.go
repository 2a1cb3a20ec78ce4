package devAuth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the common ancestor of every "does not exist" error.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is returned when no user has the given username or id.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrDeviceNotFound is returned when the user has no device with the given id.
	ErrDeviceNotFound = fmt.Errorf("device %w", ErrNotFound)
	// ErrInvalidCredentials is returned by Login when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned by Login for a blocked account with a correct password.
	ErrAccountLocked = errors.New("account locked")
	// ErrAlreadyExists is returned by Register when the username or email is taken.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInvalidToken is the only error ValidateToken returns for a rejected token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrCacheUnavailable is returned by mutating operations when the session cache cannot be reached.
	ErrCacheUnavailable = errors.New("session cache unavailable")
	// ErrStoreUnavailable is returned when the durable store fails or times out.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidRequest is returned for missing or malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrLoginSuperseded is returned by Login when a newer login for the same
	// device finished first; the token of this attempt is never handed out.
	ErrLoginSuperseded = errors.New("login superseded by a newer login")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
