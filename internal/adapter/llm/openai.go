package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursequiz/internal/domain"

	"github.com/sashabaranov/go-openai"
)

// chatCompleter is the part of *openai.Client the provider uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompatibleProvider talks to any OpenAI-compatible endpoint (OpenAI, Groq,
// OpenRouter) through go-openai.
type OpenAICompatibleProvider struct {
	client      chatCompleter
	model       string
	temperature float32
	timeout     time.Duration
}

func NewOpenAICompatibleProvider(apiKey, baseURL, model string, temperature float64, timeout time.Duration) *OpenAICompatibleProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatibleProvider{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(temperature),
		timeout:     timeout,
	}
}

func (p *OpenAICompatibleProvider) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
