package devAuth

import "context"

type requestInfoKey struct{}

// requestInfo is the per-request caller metadata carried through ctx. It is
// copied on every With* call so a parent context is never mutated.
type requestInfo struct {
	clientIP  string
	userAgent string
}

func requestInfoFrom(ctx context.Context) requestInfo {
	if ctx == nil {
		return requestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info
}

// WithClientIP attaches the caller's IP address to ctx. Login falls back to it
// when the device metadata carries no IP, and audit events record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	info := requestInfoFrom(ctx)
	info.clientIP = ip
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// WithUserAgent attaches the caller's User-Agent string to ctx for audit events.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	info := requestInfoFrom(ctx)
	info.userAgent = userAgent
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func clientIPFromContext(ctx context.Context) string {
	return requestInfoFrom(ctx).clientIP
}

func userAgentFromContext(ctx context.Context) string {
	return requestInfoFrom(ctx).userAgent
}
