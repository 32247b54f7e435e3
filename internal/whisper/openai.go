package whisper

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// OpenAI sends each utterance as a 16 kHz WAV upload to an OpenAI
// compatible /audio/transcriptions endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAI returns a remote recognizer. An empty baseURL uses the public
// API; an empty model uses whisper-1.
func NewOpenAI(apiKey, baseURL, model, language string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if language == "auto" {
		language = ""
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: language,
	}
}

func (o *OpenAI) Recognize(ctx context.Context, pcm []float32) (transcript.Recognition, error) {
	if len(pcm) == 0 {
		return transcript.Recognition{}, nil
	}
	wav, err := audio.EncodeWAV(pcm, transcript.SampleRate)
	if err != nil {
		return transcript.Recognition{}, fmt.Errorf("encode wav: %w", err)
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		Language: o.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Reader:   bytes.NewReader(wav),
		FilePath: "utterance.wav",
	})
	if err != nil {
		return transcript.Recognition{}, fmt.Errorf("transcription request: %w", err)
	}
	lang := resp.Language
	if lang == "" {
		lang = o.language
	}
	return transcript.Recognition{Text: resp.Text, Language: lang}, nil
}
