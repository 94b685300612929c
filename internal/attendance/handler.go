package attendance

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewdeck/crewdeck/internal/platform/httpx"
	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/shared"
)

// Handler exposes clock-in/out and attendance listings.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers attendance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("attendance", rbac.ActionView))
		gr.Get("/", h.listRecords)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("attendance", rbac.ActionInsert))
		gr.Post("/clock-in", h.clockIn)
		gr.Post("/clock-out", h.clockOut)
	})
}

type clockInRequest struct {
	LocationID int64   `json:"location_id"`
	Latitude   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude  float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (h *Handler) clockIn(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var req clockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.ClockIn(r.Context(), actor, req.LocationID, req.Latitude, req.Longitude, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondDomainError(w, "clock in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"record": rec})
}

func (h *Handler) clockOut(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	rec, err := h.service.ClockOut(r.Context(), actor)
	if err != nil {
		h.respondDomainError(w, "clock out", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"record": rec})
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	scope, ok := h.guard.GrantFor(r.Context(), actor, "attendance", rbac.ActionView)
	if !ok {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	filter := ListFilter{Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		filter.UserID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		filter.From, _ = time.Parse(time.RFC3339, raw)
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		filter.To, _ = time.Parse(time.RFC3339, raw)
	}
	items, pagination, err := h.service.List(r.Context(), actor, scope, filter)
	if err != nil {
		h.logger.Error("list attendance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": items, "pagination": pagination})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrAlreadyClockedIn), errors.Is(err, ErrNotClockedIn), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrOutsideGeofence):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Outside Geofence", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
