package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	devAuth "github.com/MrEthical07/devAuth"
)

// TokenValidator is the part of *devAuth.Engine the guard needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*devAuth.Session, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session stored by [Guard].
func SessionFromContext(ctx context.Context) (*devAuth.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*devAuth.Session)
	return sess, ok && sess != nil
}

// ContextWithSession stores sess the way [Guard] does. Handlers under test use it
// to skip token validation.
func ContextWithSession(ctx context.Context, sess *devAuth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// Guard rejects requests whose bearer token does not validate and stores the
// session in the request context otherwise. The response never says why.
func Guard(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := validator.ValidateToken(RequestContext(r), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// RequirePermission must run after [Guard]. It answers 403 when the session
// lacks perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, p := range sess.Permissions {
				if p == perm {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// RequestContext returns r's context annotated with the client IP and
// User-Agent for audit records.
func RequestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = devAuth.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = devAuth.WithUserAgent(ctx, ua)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
