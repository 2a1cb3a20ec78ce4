// Package internal holds packages that are private to devAuth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - logging: slog handler construction from configuration
//
// # What this package must NOT do
//
//   - Export types that appear in the public devAuth API.
//   - Be imported by any package outside the devAuth module.
package internal
