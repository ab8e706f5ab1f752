package llm

import (
	"fmt"
	"net/http"

	"coursequiz/internal/config"
	"coursequiz/internal/domain"

	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg config.LLMConfig) (domain.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		model, err := ollama.New(
			ollama.WithServerURL(cfg.ServerURL),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return NewLangchainProvider(model, cfg.Temperature, cfg.Timeout), nil
	case "openai":
		opts := []lcopenai.Option{lcopenai.WithToken(cfg.APIKey), lcopenai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
		}
		model, err := lcopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return NewLangchainProvider(model, cfg.Temperature, cfg.Timeout), nil
	case "openai-compatible":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key is required for the openai-compatible provider")
		}
		return NewOpenAICompatibleProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
