package provider

import (
	"context"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/verba-platform/verba/internal/config"
	"github.com/verba-platform/verba/internal/metrics"
)

// OpenAIProvider implements all upstream capabilities against the OpenAI API.
// Translation is a chat completion with a fixed system prompt.
type OpenAIProvider struct {
	client    *openai.Client
	chatModel string
	ttsModel  string
	ttsVoice  string
	sttModel  string
}

func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		chatModel: cfg.ChatModel,
		ttsModel:  cfg.TTSModel,
		ttsVoice:  cfg.TTSVoice,
		sttModel:  cfg.STTModel,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, "chat", messages)
}

func (p *OpenAIProvider) complete(ctx context.Context, capability string, messages []Message) (string, error) {
	reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: reqMessages,
	})
	observe(capability, start, err)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	start := time.Now()
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(p.ttsModel),
		Input: text,
		Voice: openai.SpeechVoice(p.ttsVoice),
	})
	observe("tts", start, err)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}

	return resp, nil
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	start := time.Now()
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.sttModel,
		Reader:   audio,
		FilePath: filename,
	})
	observe("stt", start, err)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	return resp.Text, nil
}

func (p *OpenAIProvider) Translate(ctx context.Context, text, targetLang string) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(
			"You are a translation engine. Translate the user's text into %s. Reply with the translation only.", targetLang)},
		{Role: RoleUser, Content: text},
	}
	return p.complete(ctx, "translate", messages)
}

func observe(capability string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProviderRequestDuration.WithLabelValues(capability, status).Observe(time.Since(start).Seconds())
}
