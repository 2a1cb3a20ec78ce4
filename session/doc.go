// Package session is the Redis-backed session cache: the fast path consulted
// on every token validation.
//
// # Slots
//
// A slot is a Redis hash holding the encoded [Session] (p), the SHA-256 of the
// token it belongs to (t), the device id (d) and the device row's token
// version (v). Slots are addressed per (user, device) under [ScopeDevice] or
// per user under [ScopeUser]; either way every slot key is also recorded in a
// per-user index set so [Store.EvictAll] can find it.
//
// # Failure semantics
//
// Any Redis error surfaces as [ErrUnavailable]. Callers on the validation path
// must treat that as "not authorized", never as "skip the cache".
//
// This package does not parse tokens or consult the device registry.
package session
