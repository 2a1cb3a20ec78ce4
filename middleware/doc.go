// Package middleware exposes the HTTP bearer-token guard built on top of
// devAuth.Engine validation.
//
// # Guards
//
//   - [Guard] validates the Authorization header and stores the session in the request context.
//   - [RequirePermission] checks a permission on the stored session.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the engine).
//   - Access Redis or the database.
//   - Tell the client why a token was rejected.
package middleware
