package provider

import (
	"context"
	"net/http"
	"strings"
)

// Ollama calls a local Ollama server. No key is needed.
type Ollama struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Generate(ctx context.Context, concept string) (string, error) {
	const op = "ollama"
	var resp ollamaResponse
	err := postJSON(ctx, o.Client, op, strings.TrimRight(o.BaseURL, "/")+"/api/generate", nil,
		ollamaRequest{
			Model:  o.Model,
			System: SystemPrompt,
			Prompt: UserPrompt(concept),
		}, &resp)
	if err != nil {
		return "", err
	}
	return nonEmpty(op, resp.Response)
}
