package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"educrm.io/ai-agent/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answers without any usable text or vector.
var ErrEmptyResponse = errors.New("empty response from language model")

// Message is one turn of a prompt, in provider-neutral form.
type Message struct {
	Role    string
	Content string
}

// Completer produces the next assistant turn for a prompt.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float32) (string, error)
}

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Client is a provider able to both complete and embed.
type Client interface {
	Completer
	Embedder
	Close() error
}

// New builds the client for cfg.LLMProvider.
func New(ctx context.Context, cfg config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
			Timeout:        cfg.LLMTimeout,
		}), nil
	case config.ProviderGemini:
		return NewGemini(ctx, GeminiOptions{
			APIKey:         cfg.GeminiAPIKey,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
			Timeout:        cfg.LLMTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
