package speech

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/quota"
)

// maxAudioUpload caps STT/S2S uploads at 25 MB, the provider's own ceiling.
const maxAudioUpload = 25 << 20

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

type SynthesizeRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

// Synthesize handles POST /tts and streams the audio back.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var req SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	audio, err := h.svc.Synthesize(r.Context(), userID, req.Text)
	if err != nil {
		slog.Error("synthesizing speech", "user_id", userID, "error", err)
		api.HandleError(w, quota.AsAppError(err))
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, audio); err != nil {
		slog.Warn("streaming audio response", "error", err)
	}
}

// Transcribe handles POST /stt with a multipart "audio" file.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	file, filename, ok := audioUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	text, err := h.svc.Transcribe(r.Context(), userID, file, filename)
	if err != nil {
		slog.Error("transcribing audio", "user_id", userID, "error", err)
		api.HandleError(w, quota.AsAppError(err))
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"text": text})
}

// SpeechToSpeech handles POST /s2s with a multipart "audio" file. The reply
// audio is returned base64-encoded alongside both transcripts.
func (h *Handler) SpeechToSpeech(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	file, filename, ok := audioUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	exchange, err := h.svc.SpeechToSpeech(r.Context(), userID, file, filename)
	if err != nil {
		slog.Error("speech to speech", "user_id", userID, "error", err)
		api.HandleError(w, quota.AsAppError(err))
		return
	}
	defer exchange.Audio.Close()

	audioBytes, err := io.ReadAll(exchange.Audio)
	if err != nil {
		slog.Error("reading synthesized reply", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{
		"transcript": exchange.Transcript,
		"reply":      exchange.Reply,
		"audio":      base64.StdEncoding.EncodeToString(audioBytes),
	})
}

func audioUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		api.HandleError(w, api.NewBadRequestError("expected multipart form with audio file"))
		return nil, "", false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("missing audio file"))
		return nil, "", false
	}

	return file, header.Filename, true
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
