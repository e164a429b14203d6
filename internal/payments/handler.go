package payments

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/subscriptions"
)

type Handler struct {
	svc             *Service
	flutterwaveHash string
	validate        *validator.Validate
}

func NewHandler(svc *Service, flutterwaveHash string) *Handler {
	return &Handler{
		svc:             svc,
		flutterwaveHash: flutterwaveHash,
		validate:        validator.New(),
	}
}

type InitializeRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// Initialize handles POST /payments/initialize for the authenticated user.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
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

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	checkout, err := h.svc.InitializeCheckout(r.Context(), userID, claims.Email, req.Plan)
	if err != nil {
		var notPurchasable *ErrPlanNotPurchasable
		var grantErr *subscriptions.GrantError
		switch {
		case errors.As(err, &notPurchasable):
			api.HandleError(w, api.NewBadRequestError(notPurchasable.Error()))
		case errors.As(err, &grantErr):
			api.HandleError(w, api.NewBadRequestError(grantErr.Reason))
		default:
			slog.Error("initializing checkout", "user_id", userID, "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusOK, checkout)
}

// Verify handles GET /payments/verify/{reference} after checkout redirect.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		api.HandleError(w, api.NewBadRequestError("missing transaction reference"))
		return
	}

	sub, err := h.svc.VerifyAndGrant(r.Context(), reference)
	if err != nil {
		slog.Error("verifying transaction", "reference", reference, "error", err)
		api.HandleError(w, api.NewBadRequestError("transaction could not be verified"))
		return
	}

	api.JSON(w, http.StatusOK, sub)
}

// FlutterwaveWebhook handles POST /payments/webhook/flutterwave. Grant
// failures return 500 so the provider redelivers the event.
func (h *Handler) FlutterwaveWebhook(w http.ResponseWriter, r *http.Request) {
	if !VerifyFlutterwaveHash(h.flutterwaveHash, r.Header.Get("verif-hash")) {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var event FlutterwaveEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.svc.HandleFlutterwaveEvent(r.Context(), event); err != nil {
		slog.Error("handling flutterwave webhook", "tx_ref", event.Data.TxRef, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "ok")
}
