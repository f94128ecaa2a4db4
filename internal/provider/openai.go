package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/ivlev/concept2video/internal/domain"
)

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Client    *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, concept string) (string, error) {
	const op = "openai"
	if o.APIKey == "" {
		return "", domain.Wrap(domain.KindProvider, op, ErrMissingKey)
	}

	var resp chatResponse
	err := postJSON(ctx, o.Client, op, strings.TrimRight(o.BaseURL, "/")+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + o.APIKey},
		chatRequest{
			Model:     o.Model,
			MaxTokens: o.MaxTokens,
			Messages: []chatMessage{
				{Role: "system", Content: SystemPrompt},
				{Role: "user", Content: UserPrompt(concept)},
			},
		}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", domain.Wrap(domain.KindProvider, op, ErrEmptyResponse)
	}
	return nonEmpty(op, resp.Choices[0].Message.Content)
}
