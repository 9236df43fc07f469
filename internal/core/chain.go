package core

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"educrm.io/ai-agent/internal/llm"
	"educrm.io/ai-agent/internal/store"
)

// Chain is the in-memory dialogue state of one conversation. The transcript starts
// with the system prompt and only ever grows.
type Chain struct {
	conversationID int64
	completer      llm.Completer
	temperature    float32

	mu         sync.Mutex
	transcript []llm.Message
}

func newChain(conversationID int64, completer llm.Completer, temperature float32) *Chain {
	return &Chain{
		conversationID: conversationID,
		completer:      completer,
		temperature:    temperature,
		transcript:     []llm.Message{{Role: llm.RoleSystem, Content: assistantSystemPrompt}},
	}
}

// AppendMessage records a turn that has already been persisted.
func (c *Chain) AppendMessage(role store.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown message role %q", ErrInvalidArgument, role)
	}
	c.mu.Lock()
	c.transcript = append(c.transcript, llm.Message{Role: string(role), Content: content})
	c.mu.Unlock()
	return nil
}

// Transcript returns a copy of the current transcript, system prompt included.
func (c *Chain) Transcript() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// GenerateReply asks the model for the next assistant turn after userInput.
// The transcript is left unchanged; callers append both turns once they are stored.
func (c *Chain) GenerateReply(ctx context.Context, userInput string) (string, error) {
	prompt := append(c.Transcript(), llm.Message{Role: llm.RoleUser, Content: userInput})
	reply, err := c.completer.Complete(ctx, prompt, c.temperature)
	if err != nil {
		return "", upstream(fmt.Sprintf("generate reply for conversation %d", c.conversationID), err)
	}
	return reply, nil
}

// Registry caches one Chain per conversation. Chains that fall out of the LRU are
// rebuilt from the store on the next access.
type Registry struct {
	store       *store.Store
	completer   llm.Completer
	temperature float32

	buildMu sync.Mutex
	cache   *lru.Cache[int64, *Chain]
}

func NewRegistry(st *store.Store, completer llm.Completer, temperature float32, size int) (*Registry, error) {
	cache, err := lru.New[int64, *Chain](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Registry{store: st, completer: completer, temperature: temperature, cache: cache}, nil
}

// GetOrCreate returns the cached chain for conversationID or builds one from the
// persisted transcript. Existing chains are never re-seeded.
func (r *Registry) GetOrCreate(ctx context.Context, conversationID int64) (*Chain, error) {
	if chain, ok := r.cache.Get(conversationID); ok {
		return chain, nil
	}

	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if chain, ok := r.cache.Get(conversationID); ok {
		return chain, nil
	}

	messages, err := r.store.GetMessagesByConversationID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	chain := newChain(conversationID, r.completer, r.temperature)
	for _, m := range messages {
		if err := chain.AppendMessage(m.Role, m.Content); err != nil {
			return nil, err
		}
	}
	r.cache.Add(conversationID, chain)
	return chain, nil
}

func (r *Registry) Remove(conversationID int64) {
	r.cache.Remove(conversationID)
}

func (r *Registry) Len() int { return r.cache.Len() }
