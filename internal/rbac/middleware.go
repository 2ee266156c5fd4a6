package rbac

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Authorization guards routes by role. Request-level checks live in the
// services; this only gates whole endpoints.
type Authorization struct {
	*transport.BaseHandler
}

func NewAuthorization(logger *slog.Logger) *Authorization {
	return &Authorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// RequireAny lets the request through when the actor holds one of roles.
func (az *Authorization) RequireAny(roles ...workflow.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				az.WriteAppError(w, r, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken))
				return
			}
			for _, role := range roles {
				if actor.Has(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			az.Logger.WarnContext(r.Context(), "access denied: missing role",
				"user_id", actor.ID,
				"required_roles", roles,
				"user_roles", actor.Caps.Roles())
			az.WriteAppError(w, r, internal.NewForbiddenError("Insufficient permissions", internal.ErrCodeNotApprover))
		})
	}
}

// RequireSuperAdmin gates configuration endpoints.
func (az *Authorization) RequireSuperAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				az.WriteAppError(w, r, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken))
				return
			}
			if !actor.IsSuperAdmin() {
				az.Logger.WarnContext(r.Context(), "access denied: super admin required", "user_id", actor.ID)
				az.WriteAppError(w, r, internal.NewForbiddenError("Super admin access required", internal.ErrCodeSuperAdminRequired))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
