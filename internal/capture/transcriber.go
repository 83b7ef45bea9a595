package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperConfig configures the hosted Whisper transcription gateway.
type WhisperConfig struct {
	APIKey   string
	Model    string
	Language string
}

// WhisperTranscriber sends captured utterances to the OpenAI transcription
// endpoint.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisperTranscriber(cfg WhisperConfig) (*WhisperTranscriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrTranscription)
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client:   openai.NewClient(cfg.APIKey),
		model:    model,
		language: cfg.Language,
	}, nil
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, u Utterance) (string, error) {
	if len(u.PCM) == 0 {
		return "", fmt.Errorf("%w: empty utterance", ErrTranscription)
	}
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(encodeWAV(u.PCM, u.SampleRate)),
		Language: t.language,
	}
	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty result", ErrTranscription)
	}
	return text, nil
}
