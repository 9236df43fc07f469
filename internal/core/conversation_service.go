package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"educrm.io/ai-agent/internal/llm"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
	"educrm.io/ai-agent/internal/vectorstore"
)

const conversationLockStripes = 64

// SyncEnqueuer schedules a background embedding refresh for a conversation.
type SyncEnqueuer interface {
	Enqueue(conversationID int64) bool
}

type ConversationService struct {
	store    *store.Store
	registry *Registry
	sync     SyncEnqueuer
	vectors  vectorstore.Store
	embedder llm.Embedder
	log      *logger.Logger

	locks [conversationLockStripes]sync.Mutex
}

func NewConversationService(st *store.Store, registry *Registry, syncer SyncEnqueuer, vectors vectorstore.Store, embedder llm.Embedder, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:    st,
		registry: registry,
		sync:     syncer,
		vectors:  vectors,
		embedder: embedder,
		log:      log.With("service", "ConversationService"),
	}
}

// lockFor serializes turns on the same conversation.
func (s *ConversationService) lockFor(conversationID int64) *sync.Mutex {
	idx := uint64(conversationID) % conversationLockStripes
	return &s.locks[idx]
}

func defaultConversationTitle() string {
	return "Conversation " + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *ConversationService) Create(ctx context.Context, userID int64, title string) (*store.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle()
	}
	if len(title) > 255 {
		return nil, fmt.Errorf("%w: title must be at most 255 characters", ErrInvalidArgument)
	}

	conv, err := s.store.CreateConversation(ctx, userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if _, err := s.registry.GetOrCreate(ctx, conv.ID); err != nil {
		s.log.Warn("Failed to prepare chain for new conversation", "conversation_id", conv.ID, "error", err)
	}
	s.log.Info("Conversation created", "conversation_id", conv.ID, "user_id", userID)
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, userID int64, skip, limit int) ([]store.Conversation, error) {
	skip, limit, err := NormalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListConversationsByUser(ctx, userID, skip, limit)
}

// Get returns the conversation with its messages. Absent and not-owned both map to ErrNotFound.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID int64) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
	}
	conv.Messages, err = s.store.GetMessagesByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// AddMessage runs one chat turn: the user message is stored, the model is asked for a
// reply, the reply is stored and an embedding refresh is scheduled. It returns the
// stored user message. When the model fails the user message stays persisted, no
// assistant message is written and the cached chain is dropped.
func (s *ConversationService) AddMessage(ctx context.Context, userID, conversationID int64, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content must not be empty", ErrInvalidArgument)
	}

	mu := s.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
	}

	// Load the chain before storing the user turn so a rebuilt transcript does not already contain it.
	chain, err := s.registry.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{ConversationID: conversationID, Role: store.RoleUser, Content: content}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	reply, err := chain.GenerateReply(ctx, content)
	if err != nil {
		s.registry.Remove(conversationID)
		s.log.Error("Model reply failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}

	assistantMsg := &store.Message{ConversationID: conversationID, Role: store.RoleAssistant, Content: reply}
	if err := s.store.CreateMessage(ctx, assistantMsg); err != nil {
		s.registry.Remove(conversationID)
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	_ = chain.AppendMessage(store.RoleUser, content)
	_ = chain.AppendMessage(store.RoleAssistant, reply)

	if s.sync != nil {
		s.sync.Enqueue(conversationID)
	}
	return userMsg, nil
}

// Delete removes an owned conversation, its messages, its chain and its vector record.
// Vector store failures are logged and otherwise ignored.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID int64) error {
	mu := s.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
	}

	s.registry.Remove(conversationID)
	if err := s.store.DeleteConversation(ctx, conversationID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
		}
		return err
	}

	// The point id is the conversation id, so an in-flight sync may have
	// written it even when vector_id is still unset.
	if s.vectors.Enabled() {
		if verr := s.vectors.Delete(ctx, uint64(conversationID)); verr != nil {
			s.log.Warn("Failed to delete conversation vector", "conversation_id", conversationID, "error", verr)
		}
	}
	s.log.Info("Conversation deleted", "conversation_id", conversationID, "user_id", userID)
	return nil
}

type SimilarConversation struct {
	Conversation store.Conversation `json:"conversation"`
	Score        float64            `json:"score"`
}

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// SearchSimilar embeds query and returns the caller's conversations closest to it,
// best match first.
func (s *ConversationService) SearchSimilar(ctx context.Context, userID int64, query string, limit int) ([]SimilarConversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidArgument)
	}
	if limit < 0 || limit > maxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, maxSearchLimit)
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	results := []SimilarConversation{}
	if !s.vectors.Enabled() {
		return results, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, upstream("embed query", err)
	}
	matches, err := s.vectors.Search(ctx, vectorstore.SearchRequest{
		Vector: vec,
		Limit:  limit,
		Must:   map[string]any{"user_id": userID},
	})
	if err != nil {
		return nil, upstream("vector search", err)
	}
	if len(matches) == 0 {
		return results, nil
	}

	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, int64(m.ID))
	}
	convs, err := s.store.ListConversationsByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.Conversation, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
	}
	for _, m := range matches {
		conv, ok := byID[int64(m.ID)]
		if !ok {
			continue
		}
		conv.Messages = []store.Message{}
		results = append(results, SimilarConversation{Conversation: conv, Score: m.Score})
	}
	return results, nil
}
