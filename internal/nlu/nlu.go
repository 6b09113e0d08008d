// Package nlu composes the text that gets spoken back to the caller.
package nlu

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Composer turns a transcript into reply text. An empty transcript must
// yield an empty reply.
type Composer interface {
	Compose(ctx context.Context, transcript string) (string, error)
}

// Echo speaks the transcript back unchanged.
type Echo struct{}

func (Echo) Compose(_ context.Context, transcript string) (string, error) {
	return transcript, nil
}

const systemPrompt = `
You are VOX, a voice assistant. The user spoke to you and their speech was
transcribed. Reply with ONE or TWO short sentences suitable for speech
synthesis.

RULES:
1. Answer in the same language the user used.
2. No markdown, no lists, no emoji.
3. If the transcript is unclear, briefly ask the user to repeat.
`

// Assistant asks an OpenAI chat model for a reply.
type Assistant struct {
	client openai.Client
	model  openai.ChatModel
}

// NewAssistant builds an Assistant. An empty model selects gpt-5-nano and a
// nil httpClient uses the SDK default transport.
func NewAssistant(apiKey, model string, httpClient *http.Client, extra ...option.RequestOption) *Assistant {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	opts = append(opts, extra...)

	m := openai.ChatModelGPT5Nano
	if model != "" {
		m = openai.ChatModel(model)
	}
	return &Assistant{
		client: openai.NewClient(opts...),
		model:  m,
	}
}

func (a *Assistant) Compose(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
		Model: a.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}

	log.Debug("Composed reply", "data", content)

	return content, nil
}
