// Package llm adapts chat-completion backends to domain.LLMProvider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursequiz/internal/domain"

	"github.com/tmc/langchaingo/llms"
)

// LangchainProvider sends chats through a langchaingo model (Ollama or OpenAI).
type LangchainProvider struct {
	model       llms.Model
	temperature float64
	timeout     time.Duration
}

func NewLangchainProvider(model llms.Model, temperature float64, timeout time.Duration) *LangchainProvider {
	return &LangchainProvider{model: model, temperature: temperature, timeout: timeout}
}

func (p *LangchainProvider) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatRole(m.Role), m.Content))
	}

	resp, err := p.model.GenerateContent(ctx, content, llms.WithTemperature(p.temperature))
	if err != nil {
		return "", fmt.Errorf("llm generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
