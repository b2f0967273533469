package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lpg-service/internal/auth"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller resolved by the auth middleware.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*auth.Principal)
	return p, ok && p != nil
}

// bearerToken reads the Authorization header. EventSource clients cannot
// set headers, so access_token in the query is accepted as well.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}

// RequireAuth rejects requests without a valid session token.
func RequireAuth(a Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required", nil)
				return
			}

			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				writeServiceError(w, logger, err, "authenticate")
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth resolves the caller when a token is sent and lets anonymous
// requests through.
func OptionalAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if p, err := a.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(withPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actor returns the authenticated caller. Routes behind RequireAuth always
// have one.
func actor(r *http.Request) auth.Principal {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return *p
	}
	return auth.Principal{}
}
