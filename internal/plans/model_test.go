package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapability(t *testing.T) {
	for _, valid := range []string{"chat", "tts", "stt", "s2s"} {
		c, err := ParseCapability(valid)
		require.NoError(t, err)
		assert.Equal(t, Capability(valid), c)
	}
}

func TestParseCapability_Unknown(t *testing.T) {
	for _, invalid := range []string{"", "translate", "CHAT", "video"} {
		_, err := ParseCapability(invalid)
		require.Error(t, err)

		var unknownErr *ErrUnknownCapability
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, invalid, unknownErr.Value)
	}
}

func TestLimitsFor(t *testing.T) {
	l := Limits{Chat: 1, TTS: 2, STT: 3, S2S: 4}

	assert.Equal(t, 1, l.For(CapabilityChat))
	assert.Equal(t, 2, l.For(CapabilityTTS))
	assert.Equal(t, 3, l.For(CapabilitySTT))
	assert.Equal(t, 4, l.For(CapabilityS2S))
	assert.Equal(t, 0, l.For(Capability("bogus")))
}

func TestLimitsIsUnlimited(t *testing.T) {
	l := Limits{Chat: Unlimited, TTS: 300, STT: 300, S2S: 300}

	assert.True(t, l.IsUnlimited(CapabilityChat))
	assert.False(t, l.IsUnlimited(CapabilityTTS))
}

func TestFreeTier(t *testing.T) {
	free := FreeTier()
	for _, c := range Capabilities {
		assert.Equal(t, 10, free.For(c), "free tier ceiling for %s", c)
	}
}
