package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI translates with a chat-completion model.
type OpenAI struct {
	client *openai.Client
	model  string
	prompt string
}

// NewOpenAI returns a translator using model. baseURL may be empty for the
// public API or point at any OpenAI compatible server.
func NewOpenAI(apiKey, baseURL, model, source, target string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	from := source
	if from == "" || from == "auto" {
		from = "the detected source language"
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		prompt: fmt.Sprintf("Translate the user's text from %s to %s. "+
			"Reply with the translation only, without quotes or commentary.", from, target),
	}
}

// Translate sends text as the user message and returns the first choice.
func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
