package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiOptions struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	Timeout        time.Duration
}

type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dim            int
	timeout        time.Duration
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{
		client:         client,
		chatModel:      opts.ChatModel,
		embeddingModel: opts.EmbeddingModel,
		dim:            opts.EmbeddingDim,
		timeout:        opts.Timeout,
	}, nil
}

// Complete maps system turns onto the model's system instruction and replays the
// rest as chat history; the last turn must come from the user.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, temperature float32) (string, error) {
	system, history := toGeminiHistory(messages)
	if len(history) == 0 {
		return "", fmt.Errorf("prompt is empty")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return "", fmt.Errorf("last message in prompt is not from the user")
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.chatModel)
	model.SetTemperature(temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = history[:len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.client.EmbeddingModel(c.embeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrEmptyResponse
	}
	if c.dim > 0 && len(res.Embedding.Values) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: expected=%d got=%d", c.dim, len(res.Embedding.Values))
	}
	return res.Embedding.Values, nil
}

func (c *GeminiClient) Dimension() int { return c.dim }

func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// toGeminiHistory folds system messages into one instruction and renames the
// assistant role to "model".
func toGeminiHistory(messages []Message) (string, []*genai.Content) {
	var (
		system  []string
		history []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return strings.Join(system, "\n\n"), history
}
