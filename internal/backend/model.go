package backend

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/chainbench/pkg/config"
)

const defaultOllamaURL = "http://localhost:11434"

// NewModel builds the langchaingo model for a configured provider.
func NewModel(ctx context.Context, name string, p config.ProviderConfig) (llms.Model, error) {
	var (
		llm llms.Model
		err error
	)

	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(p.APIKey),
			anthropic.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	case "ollama":
		serverURL := p.BaseURL
		if serverURL == "" {
			serverURL = defaultOllamaURL
		}
		llm, err = ollama.New(
			ollama.WithServerURL(serverURL),
			ollama.WithModel(p.Model),
		)
	case "gemini", "googleai":
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(p.APIKey),
			googleai.WithDefaultModel(p.Model),
		)
	default:
		return nil, fmt.Errorf("%w: provider %s not supported", ErrBackend, name)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: create %s model: %w", ErrBackend, name, err)
	}
	return llm, nil
}

// FromConfig builds a Backend for the default enabled provider.
func FromConfig(ctx context.Context, cfg *config.Config) (*Langchain, error) {
	name, p := cfg.GetDefaultProvider()
	if name == "" {
		return nil, fmt.Errorf("%w: no enabled provider found in config", ErrBackend)
	}

	llm, err := NewModel(ctx, name, p)
	if err != nil {
		return nil, err
	}

	return NewLangchain(llm, WithMaxTokens(p.MaxTokens), WithTemperature(p.Temperature)), nil
}
