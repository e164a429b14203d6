// Package provider abstracts the upstream AI services the gateway fronts.
// Handlers depend on these interfaces so tests can swap in fakes without an
// API key.
package provider

import (
	"context"
	"io"
)

// Message is a single turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatProvider produces an assistant reply for a conversation history.
type ChatProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// SpeechSynthesizer turns text into spoken audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Transcriber turns spoken audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}
