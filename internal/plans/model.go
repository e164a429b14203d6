package plans

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Capability is one billable unit of AI-backed work.
type Capability string

const (
	CapabilityChat Capability = "chat"
	CapabilityTTS  Capability = "tts"
	CapabilitySTT  Capability = "stt"
	CapabilityS2S  Capability = "s2s"
)

// Capabilities lists every valid capability, in display order.
var Capabilities = []Capability{CapabilityChat, CapabilityTTS, CapabilitySTT, CapabilityS2S}

// ErrUnknownCapability is returned for capability strings outside the closed enum.
type ErrUnknownCapability struct {
	Value string
}

func (e *ErrUnknownCapability) Error() string {
	return fmt.Sprintf("unknown capability %q", e.Value)
}

// ParseCapability validates a capability string against the closed enum.
func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapabilityChat, CapabilityTTS, CapabilitySTT, CapabilityS2S:
		return Capability(s), nil
	}
	return "", &ErrUnknownCapability{Value: s}
}

// Unlimited is the sentinel ceiling for capabilities with no quota.
const Unlimited = -1

// Limits holds per-capability quota ceilings for one rolling window.
// A ceiling of Unlimited (-1) admits unconditionally.
type Limits struct {
	Chat int `json:"chat_limit"`
	TTS  int `json:"tts_limit"`
	STT  int `json:"stt_limit"`
	S2S  int `json:"s2s_limit"`
}

// For returns the ceiling for a single capability.
func (l Limits) For(c Capability) int {
	switch c {
	case CapabilityChat:
		return l.Chat
	case CapabilityTTS:
		return l.TTS
	case CapabilitySTT:
		return l.STT
	case CapabilityS2S:
		return l.S2S
	}
	return 0
}

// IsUnlimited reports whether the ceiling for c is the unlimited sentinel.
func (l Limits) IsUnlimited(c Capability) bool {
	return l.For(c) == Unlimited
}

// Plan matches the plans table schema.
type Plan struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Limits    Limits    `json:"limits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FreeTier is the hard-coded fallback tier. It is used whenever a user has no
// subscription, the subscription has expired, or plan data cannot be resolved,
// so the quota guard never fails open to higher ceilings.
func FreeTier() Limits {
	return Limits{Chat: 10, TTS: 10, STT: 10, S2S: 10}
}

// FreeTierName is the plan name granted at signup.
const FreeTierName = "free"
