// Package httpapi exposes the engine over JSON/HTTP with a chi router.
//
// Authenticated routes run behind middleware.Guard; the acting user and
// device always come from the validated session, never from the request body.
package httpapi
