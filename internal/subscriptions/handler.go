package subscriptions

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET /subscription: the entitlement currently in force for the
// authenticated user. Users without a purchased plan see the free tier.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
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

	ent, err := h.svc.Resolve(r.Context(), userID)
	if err != nil {
		slog.Error("resolving entitlement", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrDependencyUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, ent)
}
