package locations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewdeck/crewdeck/internal/platform/httpx"
	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/shared"
)

// Handler manages geofenced site endpoints.
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

// MountRoutes registers location routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("locations", rbac.ActionView))
		gr.Get("/", h.listLocations)
		gr.Get("/{id}", h.getLocation)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("locations", rbac.ActionInsert))
		gr.Post("/", h.createLocation)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("locations", rbac.ActionUpdate))
		gr.Put("/{id}", h.updateLocation)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("locations", rbac.ActionDelete))
		gr.Delete("/{id}", h.deleteLocation)
	})
}

type locationRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=128"`
	Address   string  `json:"address" validate:"max=255"`
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" validate:"gte=-180,lte=180"`
	RadiusM   float64 `json:"radius_m" validate:"gte=0"`
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListLocations(r.Context())
	if err != nil {
		h.logger.Error("list locations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": sites})
}

func (h *Handler) getLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	loc, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, "get location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location": loc})
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	loc, err := h.service.CreateLocation(r.Context(), Location{
		Name:      req.Name,
		Address:   req.Address,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		RadiusM:   req.RadiusM,
	})
	if err != nil {
		h.respondDomainError(w, "create location", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"location": loc})
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	loc, err := h.service.UpdateLocation(r.Context(), Location{
		ID:        id,
		Name:      req.Name,
		Address:   req.Address,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		RadiusM:   req.RadiusM,
	})
	if err != nil {
		h.respondDomainError(w, "update location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location": loc})
}

func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.DeleteLocation(r.Context(), id); err != nil {
		h.respondDomainError(w, "delete location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
