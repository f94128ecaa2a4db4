package provider

import (
	"fmt"
	"net/http"

	"github.com/ivlev/concept2video/internal/config"
)

// Names lists the registered providers.
var Names = []string{"anthropic", "openai", "ollama", "static"}

// New creates the named generator from cfg. An empty name selects
// cfg.Default.
func New(name string, cfg config.ProviderConfig) (Generator, error) {
	if name == "" {
		name = cfg.Default
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch name {
	case "anthropic":
		return &Anthropic{
			BaseURL:   cfg.Anthropic.BaseURL,
			Model:     cfg.Anthropic.Model,
			APIKey:    cfg.Anthropic.APIKey,
			MaxTokens: cfg.MaxTokens,
			Client:    client,
		}, nil
	case "openai":
		return &OpenAI{
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			APIKey:    cfg.OpenAI.APIKey,
			MaxTokens: cfg.MaxTokens,
			Client:    client,
		}, nil
	case "ollama":
		return &Ollama{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Client:  client,
		}, nil
	case "static":
		return &Static{Path: cfg.StaticSVG}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}
