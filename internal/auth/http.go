package auth

import (
	"context"
	"net/http"

	"droneFleetManagement/internal/fault"
	"droneFleetManagement/models"
	"droneFleetManagement/repository"
)

// ErrorWriter renders a fault to the client; the httpapi package
// supplies its JSON error writer so middleware and handlers produce the
// same response shape.
type ErrorWriter func(w http.ResponseWriter, err error)

// Middleware authenticates requests and injects the Principal.
type Middleware struct {
	Secret     string
	Users      repository.UserRepositoryI
	WriteError ErrorWriter
}

// Authenticate validates the bearer token, checks the backing user
// still exists and is active, and stores the principal in context.
// Token claims alone are not trusted for role decisions: the role comes
// from the user record, which prevents spoofing with stale tokens.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := ParseBearer(r.Header.Get("Authorization"), m.Secret)
		if err != nil {
			m.WriteError(w, err)
			return
		}
		if p.Kind != KindUser {
			m.WriteError(w, fault.Unauthorizedf("only user tokens may call the HTTP API"))
			return
		}
		u, err := m.Users.GetByID(r.Context(), p.Subject)
		if err != nil {
			m.WriteError(w, err)
			return
		}
		if u == nil {
			m.WriteError(w, fault.Unauthorizedf("user not found"))
			return
		}
		if !u.IsActive {
			m.WriteError(w, fault.Unauthorizedf("user account is deactivated"))
			return
		}
		p.Role = u.Role
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole gates a route on a minimum role rank.
func (m *Middleware) RequireRole(min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				m.WriteError(w, fault.Unauthorizedf("missing principal"))
				return
			}
			if !p.Role.AtLeast(min) {
				m.WriteError(w, fault.Forbiddenf("role %q does not permit this action (requires %s or above)", p.Role, min))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, fault.Unauthorizedf("missing principal")
	}
	return p, nil
}
