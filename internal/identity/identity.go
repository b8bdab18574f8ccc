// Package identity resolves the caller's email for authenticated routes.
//
// Two sources are accepted. A bearer access token issued at login is verified
// here. Otherwise the X-User-Email header is trusted as set by the upstream
// authentication layer; this service does not re-verify it.
package identity

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/internal/token"
)

// HeaderUserEmail carries the caller email set by the upstream auth layer.
const HeaderUserEmail = "X-User-Email"

type ctxKey struct{}

// WithEmail returns a context carrying the caller email.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, email)
}

// EmailFrom returns the caller email, if any.
func EmailFrom(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxKey{}).(string)
	return email, ok && email != ""
}

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// Middleware populates the caller email. An invalid bearer token is rejected
// with 401; a request with no identity passes through and the handler decides.
func Middleware(parser TokenParser, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearer(r); ok && parser != nil {
				claims, err := parser.Parse(raw)
				if err != nil {
					logger.Debugw("rejected bearer token", "path", r.URL.Path, "err", err)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"detail":"Invalid token"}`))
					return
				}
				next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), claims.Email)))
				return
			}
			if email := strings.TrimSpace(r.Header.Get(HeaderUserEmail)); email != "" {
				next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}
