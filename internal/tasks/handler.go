package tasks

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

// Handler manages task endpoints.
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

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("tasks", rbac.ActionView))
		gr.Get("/", h.listTasks)
		gr.Get("/{id}", h.getTask)
		gr.Get("/{id}/history", h.taskHistory)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("tasks", rbac.ActionInsert))
		gr.Post("/", h.createTask)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("tasks", rbac.ActionUpdate))
		gr.Put("/{id}", h.updateTask)
		gr.Post("/{id}/transition", h.transition)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.Require("tasks", rbac.ActionDelete))
		gr.Delete("/{id}", h.deleteTask)
	})
}

type taskRequest struct {
	Title       string     `json:"title" validate:"required,min=2,max=255"`
	Description string     `json:"description" validate:"max=4000"`
	AssigneeID  int64      `json:"assignee_id"`
	LocationID  int64      `json:"location_id"`
	DueAt       *time.Time `json:"due_at"`
}

type transitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	scope, ok := h.guard.GrantFor(r.Context(), actor, "tasks", rbac.ActionView)
	if !ok {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	filter := ListFilter{
		Status:  Status(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	}
	if raw := r.URL.Query().Get("assignee_id"); raw != "" {
		filter.AssigneeID, _ = strconv.ParseInt(raw, 10, 64)
	}
	items, pagination, err := h.service.List(r.Context(), actor, scope, filter)
	if err != nil {
		h.logger.Error("list tasks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": items, "pagination": pagination})
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	scope, ok := h.guard.GrantFor(r.Context(), actor, "tasks", rbac.ActionView)
	if !ok {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	task, err := h.service.Get(r.Context(), actor, scope, id)
	if err != nil {
		h.respondDomainError(w, "get task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) taskHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.logger.Error("task history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.Create(r.Context(), actor, Task{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		LocationID:  req.LocationID,
		DueAt:       req.DueAt,
	})
	if err != nil {
		h.respondDomainError(w, "create task", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"task": task})
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.Update(r.Context(), actor, Task{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		LocationID:  req.LocationID,
		DueAt:       req.DueAt,
	})
	if err != nil {
		h.respondDomainError(w, "update task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	scope, ok := h.guard.GrantFor(r.Context(), actor, "tasks", rbac.ActionUpdate)
	if !ok {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.Transition(r.Context(), actor, scope, id, req.Status, req.Note)
	if err != nil {
		h.respondDomainError(w, "transition task", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondDomainError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotAssignee):
		httpx.RespondError(w, httpx.ErrForbidden)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
