package speech

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/provider"
	"github.com/verba-platform/verba/internal/quota"
)

type fakeGuard struct {
	checkErr error
	checked  []plans.Capability
	commits  []plans.Capability
}

func (f *fakeGuard) Check(_ context.Context, _ uuid.UUID, c plans.Capability) (*quota.Decision, error) {
	f.checked = append(f.checked, c)
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &quota.Decision{Capability: c, Limit: 10, Remaining: 9}, nil
}

func (f *fakeGuard) Commit(_ context.Context, _ uuid.UUID, c plans.Capability) error {
	f.commits = append(f.commits, c)
	return nil
}

type fakeSynth struct {
	audio string
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, _ string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.audio)), nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ io.Reader, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Complete(_ context.Context, _ []provider.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()
	guard := &fakeGuard{}
	synth := &fakeSynth{audio: "mp3-bytes"}
	svc := NewService(guard, synth, &fakeTranscriber{}, &fakeChat{})

	audio, err := svc.Synthesize(ctx, uuid.New(), "speak this")
	require.NoError(t, err)
	defer audio.Close()

	data, _ := io.ReadAll(audio)
	assert.Equal(t, "mp3-bytes", string(data))
	assert.Equal(t, []plans.Capability{plans.CapabilityTTS}, guard.commits)
}

func TestSynthesize_RejectedSkipsProvider(t *testing.T) {
	guard := &fakeGuard{checkErr: &quota.ExceededError{Capability: plans.CapabilityTTS, Limit: 10, Used: 10}}
	synth := &fakeSynth{audio: "x"}
	svc := NewService(guard, synth, &fakeTranscriber{}, &fakeChat{})

	_, err := svc.Synthesize(context.Background(), uuid.New(), "speak")

	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 0, synth.calls)
	assert.Empty(t, guard.commits)
}

func TestTranscribe(t *testing.T) {
	guard := &fakeGuard{}
	stt := &fakeTranscriber{text: "hello world"}
	svc := NewService(guard, &fakeSynth{}, stt, &fakeChat{})

	text, err := svc.Transcribe(context.Background(), uuid.New(), strings.NewReader("wav"), "in.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, []plans.Capability{plans.CapabilitySTT}, guard.commits)
}

func TestSpeechToSpeech_BilledAsOneUnit(t *testing.T) {
	guard := &fakeGuard{}
	svc := NewService(guard,
		&fakeSynth{audio: "reply-audio"},
		&fakeTranscriber{text: "what time is it"},
		&fakeChat{reply: "half past nine"},
	)

	exchange, err := svc.SpeechToSpeech(context.Background(), uuid.New(), strings.NewReader("wav"), "q.wav")
	require.NoError(t, err)
	defer exchange.Audio.Close()

	assert.Equal(t, "what time is it", exchange.Transcript)
	assert.Equal(t, "half past nine", exchange.Reply)

	data, _ := io.ReadAll(exchange.Audio)
	assert.Equal(t, "reply-audio", string(data))

	// one s2s unit, not stt+chat+tts
	assert.Equal(t, []plans.Capability{plans.CapabilityS2S}, guard.checked)
	assert.Equal(t, []plans.Capability{plans.CapabilityS2S}, guard.commits)
}

func TestSpeechToSpeech_MidPipelineFailureCommitsNothing(t *testing.T) {
	guard := &fakeGuard{}
	svc := NewService(guard,
		&fakeSynth{err: errors.New("tts down")},
		&fakeTranscriber{text: "hi"},
		&fakeChat{reply: "hello"},
	)

	_, err := svc.SpeechToSpeech(context.Background(), uuid.New(), strings.NewReader("wav"), "q.wav")
	require.Error(t, err)
	assert.Empty(t, guard.commits)
}
