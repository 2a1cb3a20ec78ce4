// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRegister, RunRevokeDevice, ...)
// accepts a typed dependency struct and coordinates the credential store, the
// device registry, the session cache and the token manager through it. The
// root Engine builds the dependency structs once and delegates.
//
// # Architecture boundaries
//
// Flows do not own the stores, the audit dispatcher or the metrics; those stay
// with the Engine and reach the flows as interfaces and callbacks.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import devAuth (to avoid import cycles).
//   - Return store or cache errors unmapped; callers only see the sentinels in [Errors].
package flows
