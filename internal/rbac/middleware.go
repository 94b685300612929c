package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/crewdeck/crewdeck/internal/platform/httpx"
	"github.com/crewdeck/crewdeck/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. It only checks
// the coarse (module, action) grant; handlers narrow "assigned"-scoped
// grants to resources owned by the principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the current principal holds a permission for
// (module, action) in any scope. Absent principal or empty snapshot
// fail closed with 403.
func (m Middleware) Require(module string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			set, err := m.Service.Snapshot(r.Context(), principal.RoleID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac snapshot", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if _, ok := set.Grant(module, action); !ok {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GrantFor resolves the broadest scope the principal holds for
// (module, action); ok is false when nothing is granted.
func (m Middleware) GrantFor(ctx context.Context, principal *shared.Principal, module string, action Action) (string, bool) {
	if principal == nil {
		return "", false
	}
	set, err := m.Service.Snapshot(ctx, principal.RoleID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac snapshot", slog.Any("error", err))
		}
		return "", false
	}
	return set.Grant(module, action)
}
