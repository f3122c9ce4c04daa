package middleware

import (
	"context"
	"net/http"

	"github.com/atelierhq/atelier/internal/auth"
)

type contextKey string

const identityKey contextKey = "identity"

// Auth resolves the request's identity with the given resolver and
// threads it through the context. Which caller populations are
// acceptable is decided by the resolver wired in: the user resolver
// for staff routes, the dual resolver for portal routes. No identity
// means 401; a resolver fault means 500 with no detail leaked.
func Auth(resolver auth.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := auth.CredentialsFromRequest(r)

			identity, err := resolver.Resolve(r.Context(), creds)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if identity == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if entry := requestLogFrom(r.Context()); entry != nil {
				entry.identity = string(identity.Kind)
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the identity resolved for this request, or nil on
// routes that never passed through Auth.
func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

// RequireRole ensures the caller is a staff user holding one of the
// given roles. Clients always fail it.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil || !identity.IsUser() {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}
