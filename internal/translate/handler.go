// Package translate exposes the translation endpoint. Translation is not a
// metered capability: requests are authenticated but never touch the usage
// ledger.
package translate

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/provider"
)

type Handler struct {
	translator provider.Translator
	validate   *validator.Validate
}

func NewHandler(translator provider.Translator) *Handler {
	return &Handler{
		translator: translator,
		validate:   validator.New(),
	}
}

type TranslateRequest struct {
	Text       string `json:"text" validate:"required,max=8192"`
	TargetLang string `json:"target_lang" validate:"required,max=64"`
}

func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	translation, err := h.translator.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		slog.Error("translating text", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{
		"translation": translation,
		"target_lang": req.TargetLang,
	})
}
