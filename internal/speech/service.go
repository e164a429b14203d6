// Package speech fronts the voice capabilities: synthesis, transcription, and
// the speech-to-speech composition. Every operation is metered through the
// quota engine; s2s is billed as a single unit even though it fans out to
// three provider calls.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/provider"
	"github.com/verba-platform/verba/internal/quota"
)

type QuotaGuard interface {
	Check(ctx context.Context, userID uuid.UUID, capability plans.Capability) (*quota.Decision, error)
	Commit(ctx context.Context, userID uuid.UUID, capability plans.Capability) error
}

type Service struct {
	guard       QuotaGuard
	synthesizer provider.SpeechSynthesizer
	transcriber provider.Transcriber
	chat        provider.ChatProvider
}

func NewService(guard QuotaGuard, synthesizer provider.SpeechSynthesizer, transcriber provider.Transcriber, chat provider.ChatProvider) *Service {
	return &Service{
		guard:       guard,
		synthesizer: synthesizer,
		transcriber: transcriber,
		chat:        chat,
	}
}

// Synthesize runs one metered TTS request and returns the audio stream. The
// caller must close it.
func (s *Service) Synthesize(ctx context.Context, userID uuid.UUID, text string) (io.ReadCloser, error) {
	if _, err := s.guard.Check(ctx, userID, plans.CapabilityTTS); err != nil {
		return nil, err
	}

	audio, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}

	s.commit(ctx, userID, plans.CapabilityTTS)
	return audio, nil
}

// Transcribe runs one metered STT request.
func (s *Service) Transcribe(ctx context.Context, userID uuid.UUID, audio io.Reader, filename string) (string, error) {
	if _, err := s.guard.Check(ctx, userID, plans.CapabilitySTT); err != nil {
		return "", err
	}

	text, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	s.commit(ctx, userID, plans.CapabilitySTT)
	return text, nil
}

// Exchange is the result of one speech-to-speech round trip.
type Exchange struct {
	Transcript string
	Reply      string
	Audio      io.ReadCloser
}

// SpeechToSpeech transcribes the audio, asks the model for a reply, and
// speaks the reply back. The three upstream calls are billed as one s2s
// unit; a failure anywhere in the pipeline commits nothing.
func (s *Service) SpeechToSpeech(ctx context.Context, userID uuid.UUID, audio io.Reader, filename string) (*Exchange, error) {
	if _, err := s.guard.Check(ctx, userID, plans.CapabilityS2S); err != nil {
		return nil, err
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}

	reply, err := s.chat.Complete(ctx, []provider.Message{
		{Role: provider.RoleUser, Content: transcript},
	})
	if err != nil {
		return nil, fmt.Errorf("completing reply: %w", err)
	}

	spoken, err := s.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return nil, fmt.Errorf("synthesizing reply: %w", err)
	}

	s.commit(ctx, userID, plans.CapabilityS2S)
	return &Exchange{
		Transcript: transcript,
		Reply:      reply,
		Audio:      spoken,
	}, nil
}

func (s *Service) commit(ctx context.Context, userID uuid.UUID, capability plans.Capability) {
	if err := s.guard.Commit(ctx, userID, capability); err != nil {
		slog.Error("committing usage", "user_id", userID, "capability", capability, "error", err)
	}
}
