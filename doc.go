// Package devAuth is an authentication and device-session core: credential
// verification, signed device tokens, a Redis session cache kept coherent with
// a durable device registry, and per-device trust and revocation.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// devAuth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([User], [Device], [Session], [LoginResult]). Flow orchestration
// and audit dispatch live under internal/; the SQL store, the session cache,
// the token manager and the password hasher are importable sub-packages.
//
// # Consistency model
//
// The registry and the cache are two independent systems with no transaction
// spanning them. A token is valid only while the cache slot and the device row
// both name it; any miss, mismatch or unreachable backend rejects the token.
// Concurrent logins on one device serialize on the registry row, and the cache
// write is guarded by the row's token version so the cache converges on the
// last completed login.
//
// # What this package must NOT do
//
//   - Persist or log a raw token, a password, or a password hash.
//   - Return a reason more specific than [ErrInvalidToken] from ValidateToken.
//   - Import any sub-package that re-imports devAuth (no import cycles).
package devAuth
