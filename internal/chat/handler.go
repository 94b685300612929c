package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewdeck/crewdeck/internal/platform/httpx"
	"github.com/crewdeck/crewdeck/internal/shared"
)

// Handler exposes chat room management and history. Live messaging goes
// over the websocket gateway.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers chat routes. Rooms are scoped to membership, so
// no permission guard applies.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rooms", h.listRooms)
	r.Post("/rooms/direct", h.openDirectRoom)
	r.Post("/rooms/group", h.createGroupRoom)
	r.Post("/rooms/task", h.ensureTaskRoom)
	r.Get("/rooms/{id}/messages", h.roomHistory)
	r.Delete("/rooms/{id}/membership", h.leaveRoom)
}

type directRoomRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type groupRoomRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=128"`
	MemberIDs []int64 `json:"member_ids"`
}

type taskRoomRequest struct {
	TaskID int64 `json:"task_id" validate:"required"`
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), actor)
	if err != nil {
		h.logger.Error("list rooms", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (h *Handler) openDirectRoom(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var req directRoomRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	room, err := h.service.OpenDirectRoom(r.Context(), actor, req.UserID)
	if err != nil {
		h.respondDomainError(w, "open direct room", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"room": room})
}

func (h *Handler) createGroupRoom(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var req groupRoomRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	room, err := h.service.CreateGroupRoom(r.Context(), actor, req.Name, req.MemberIDs)
	if err != nil {
		h.respondDomainError(w, "create group room", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"room": room})
}

func (h *Handler) ensureTaskRoom(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var req taskRoomRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	room, err := h.service.EnsureTaskRoom(r.Context(), actor, req.TaskID)
	if err != nil {
		h.respondDomainError(w, "ensure task room", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"room": room})
}

func (h *Handler) roomHistory(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	roomID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.History(r.Context(), actor, roomID, page, perPage)
	if err != nil {
		h.respondDomainError(w, "room history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": items, "pagination": pagination})
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	roomID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Leave(r.Context(), actor, roomID); err != nil {
		h.respondDomainError(w, "leave room", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "left"})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNotMember):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrInvalidRoom):
		httpx.RespondError(w, httpx.ErrValidation)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
