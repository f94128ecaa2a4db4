package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/ivlev/concept2video/internal/domain"
)

const anthropicVersion = "2023-06-01"

// Anthropic calls the Messages API.
type Anthropic struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Client    *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Anthropic) Generate(ctx context.Context, concept string) (string, error) {
	const op = "anthropic"
	if a.APIKey == "" {
		return "", domain.Wrap(domain.KindProvider, op, ErrMissingKey)
	}

	var resp anthropicResponse
	err := postJSON(ctx, a.Client, op, strings.TrimRight(a.BaseURL, "/")+"/v1/messages",
		map[string]string{
			"x-api-key":         a.APIKey,
			"anthropic-version": anthropicVersion,
		},
		anthropicRequest{
			Model:     a.Model,
			MaxTokens: a.MaxTokens,
			System:    SystemPrompt,
			Messages:  []anthropicMessage{{Role: "user", Content: UserPrompt(concept)}},
		}, &resp)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return nonEmpty(op, sb.String())
}
