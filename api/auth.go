/*
auth.go - Authentication context (external collaborator, interface only)

PURPOSE:
  Authentication and session management live outside this core. Handlers
  only need "given an authenticated actor and organization id", so this
  file defines that contract and a header-based provider for development.
  A production deployment swaps the provider for one backed by the real
  session service.

SEE ALSO:
  - handlers.go: Derives the transition Actor from AuthContext
*/
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/loopreach/settlement-engine/enrollment"
)

// AuthContext identifies the authenticated caller.
type AuthContext struct {
	OrganizationID string
	UserID         string
	Role           string // "brand", "shopper", "system"
}

// ErrUnauthenticated is returned when no caller identity can be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthProvider resolves the caller identity for a request.
type AuthProvider interface {
	FromRequest(r *http.Request) (AuthContext, error)
}

// HeaderAuthProvider reads identity from request headers. Development and
// testing only; it trusts the caller.
type HeaderAuthProvider struct{}

func (HeaderAuthProvider) FromRequest(r *http.Request) (AuthContext, error) {
	ac := AuthContext{
		OrganizationID: r.Header.Get("X-Organization-Id"),
		UserID:         r.Header.Get("X-User-Id"),
		Role:           r.Header.Get("X-Role"),
	}
	if ac.UserID == "" && ac.Role != "system" {
		return AuthContext{}, ErrUnauthenticated
	}
	if ac.Role == "" {
		ac.Role = "brand"
	}
	return ac, nil
}

type authCtxKey struct{}

// WithAuth is middleware that resolves caller identity once per request.
func WithAuth(provider AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := provider.FromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Authentication required", codeForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), authCtxKey{}, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFrom(ctx context.Context) AuthContext {
	ac, _ := ctx.Value(authCtxKey{}).(AuthContext)
	return ac
}

// actorFrom maps the authenticated caller to a transition actor.
func actorFrom(ac AuthContext) enrollment.Actor {
	switch ac.Role {
	case "system":
		return enrollment.SystemActor()
	case "shopper":
		return enrollment.Actor{Type: enrollment.ActorShopper, ID: ac.UserID}
	default:
		return enrollment.Actor{Type: enrollment.ActorOrganization, ID: ac.UserID}
	}
}
