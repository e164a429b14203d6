package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/quota"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type SendMessageRequest struct {
	ChatID  *uuid.UUID `json:"chat_id,omitempty"`
	Content string     `json:"content" validate:"required,max=32768"`
}

// Send handles POST /chat: one metered conversation turn.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.SendMessage(r.Context(), userID, req.ChatID, req.Content)
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			api.HandleError(w, api.NewNotFoundError("chat not found"))
			return
		}
		slog.Error("sending chat message", "user_id", userID, "error", err)
		api.HandleError(w, quota.AsAppError(err))
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// List handles GET /chats.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	page, pageSize := 1, 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	chats, total, err := h.svc.ListChats(r.Context(), userID, page, pageSize)
	if err != nil {
		slog.Error("listing chats", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, chats, total, page, pageSize)
}

// Get handles GET /chats/{chatID}: the thread with its full history.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid chat id"))
		return
	}

	chat, messages, err := h.svc.GetChatWithMessages(r.Context(), chatID, userID)
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			api.HandleError(w, api.NewNotFoundError("chat not found"))
			return
		}
		slog.Error("getting chat", "chat_id", chatID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"chat":     chat,
		"messages": messages,
	})
}

// Delete handles DELETE /chats/{chatID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid chat id"))
		return
	}

	if err := h.svc.DeleteChat(r.Context(), chatID, userID); err != nil {
		if errors.Is(err, ErrChatNotFound) {
			api.HandleError(w, api.NewNotFoundError("chat not found"))
			return
		}
		slog.Error("deleting chat", "chat_id", chatID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "chat deleted")
}

func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}
