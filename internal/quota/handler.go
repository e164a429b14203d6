package quota

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/subscriptions"
)

type Handler struct {
	guard *Guard
}

func NewHandler(guard *Guard) *Handler {
	return &Handler{guard: guard}
}

// StatusResponse is the usage dashboard payload: the plan in force and the
// per-capability consumption against it.
type StatusResponse struct {
	Plan         *subscriptions.Entitlement `json:"plan"`
	Capabilities []CapabilityStatus         `json:"capabilities"`
}

// GetStatus handles GET /usage for the authenticated user.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	ent, statuses, err := h.guard.Status(r.Context(), userID)
	if err != nil {
		slog.Error("reading usage status", "user_id", userID, "error", err)
		api.HandleError(w, AsAppError(err))
		return
	}

	api.JSON(w, http.StatusOK, StatusResponse{
		Plan:         ent,
		Capabilities: statuses,
	})
}
