package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crewdeck/crewdeck/internal/attendance"
	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/chat"
	"github.com/crewdeck/crewdeck/internal/locations"
	"github.com/crewdeck/crewdeck/internal/notifications"
	"github.com/crewdeck/crewdeck/internal/observability"
	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/realtime"
	"github.com/crewdeck/crewdeck/internal/roles"
	"github.com/crewdeck/crewdeck/internal/tasks"
	"github.com/crewdeck/crewdeck/internal/users"
	"github.com/crewdeck/crewdeck/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	AuthMiddleware       auth.Middleware
	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	RolesHandler         *roles.Handler
	PermissionsHandler   *rbac.Handler
	TasksHandler         *tasks.Handler
	LocationsHandler     *locations.Handler
	AttendanceHandler    *attendance.Handler
	NotificationsHandler *notifications.Handler
	ChatHandler          *chat.Handler
	JobHandler           *jobs.Handler
	WSHandler            *realtime.WSHandler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router. The websocket endpoint is mounted
// outside the timeout and compression chain so long-lived connections
// survive.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP, chimw.RequestID, chimw.Recoverer)
	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.WSHandler != nil {
		r.Method(http.MethodGet, "/ws", params.WSHandler)
	}

	r.Group(func(api chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config}) {
			api.Use(mw)
		}

		api.Route("/auth", params.AuthHandler.MountRoutes)

		api.Group(func(protected chi.Router) {
			protected.Use(params.AuthMiddleware.Require)
			if params.UsersHandler != nil {
				protected.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.RolesHandler != nil {
				protected.Route("/roles", params.RolesHandler.MountRoutes)
			}
			if params.PermissionsHandler != nil {
				protected.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.TasksHandler != nil {
				protected.Route("/tasks", params.TasksHandler.MountRoutes)
			}
			if params.LocationsHandler != nil {
				protected.Route("/locations", params.LocationsHandler.MountRoutes)
			}
			if params.AttendanceHandler != nil {
				protected.Route("/attendance", params.AttendanceHandler.MountRoutes)
			}
			if params.NotificationsHandler != nil {
				protected.Route("/notifications", params.NotificationsHandler.MountRoutes)
			}
			if params.ChatHandler != nil {
				protected.Route("/chat", params.ChatHandler.MountRoutes)
			}
			if params.JobHandler != nil {
				protected.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
