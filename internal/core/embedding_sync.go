package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/llm"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
	"educrm.io/ai-agent/internal/vectorstore"
)

var errConversationGone = errors.New("conversation no longer exists")

type SyncStats struct {
	Enqueued  int64 `json:"enqueued"`
	Dropped   int64 `json:"dropped"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

type SyncOptions struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// CRMTimeout bounds the CRM notification after each sync.
	CRMTimeout time.Duration
	// NewBackOff overrides the retry schedule; nil means exponential backoff.
	NewBackOff func() backoff.BackOff
}

type syncState struct {
	running bool
	dirty   bool
}

// SyncQueue refreshes conversation embeddings in the background. A conversation is
// never synced by two workers at once; requests that arrive during a run cause
// exactly one more run, which reads the latest stored state.
type SyncQueue struct {
	store    *store.Store
	embedder llm.Embedder
	vectors  vectorstore.Store
	crm      crm.Gateway
	log      *logger.Logger
	opts     SyncOptions

	queue   chan int64
	sendMu  sync.RWMutex
	closed  bool
	mu      sync.Mutex
	state   map[int64]*syncState
	workers sync.WaitGroup
	pending sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	enqueued  atomic.Int64
	dropped   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

func NewSyncQueue(st *store.Store, embedder llm.Embedder, vectors vectorstore.Store, gateway crm.Gateway, log *logger.Logger, opts SyncOptions) *SyncQueue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.CRMTimeout <= 0 {
		opts.CRMTimeout = 10 * time.Second
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncQueue{
		store:    st,
		embedder: embedder,
		vectors:  vectors,
		crm:      gateway,
		log:      log.With("service", "EmbeddingSync"),
		opts:     opts,
		queue:    make(chan int64, opts.QueueSize),
		state:    make(map[int64]*syncState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker pool.
func (q *SyncQueue) Start() {
	for i := 0; i < q.opts.Workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	q.log.Info("Embedding sync workers started", "workers", q.opts.Workers, "queue_size", q.opts.QueueSize)
}

// Enqueue schedules a sync without blocking. It returns false when the request was
// dropped because the queue is full, closed or the vector store is disabled.
func (q *SyncQueue) Enqueue(conversationID int64) bool {
	if !q.vectors.Enabled() {
		return false
	}
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return false
	}
	if !q.claim(conversationID) {
		q.enqueued.Add(1)
		return true
	}

	q.pending.Add(1)
	select {
	case q.queue <- conversationID:
		q.enqueued.Add(1)
		return true
	default:
		q.release(conversationID)
		q.pending.Done()
		q.dropped.Add(1)
		q.log.Warn("Embedding sync queue full, dropping request", "conversation_id", conversationID)
		return false
	}
}

// Reindex schedules every stored conversation, blocking while the queue is full, and
// waits for all of them to finish.
func (q *SyncQueue) Reindex(ctx context.Context) (int, error) {
	if !q.vectors.Enabled() {
		return 0, vectorstore.ErrDisabled
	}
	if err := q.vectors.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	ids, err := q.store.ListConversationIDs(ctx)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, id := range ids {
		if err := q.enqueueWait(ctx, id); err != nil {
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, q.Wait(ctx)
}

func (q *SyncQueue) enqueueWait(ctx context.Context, conversationID int64) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return fmt.Errorf("embedding sync queue is closed")
	}
	if !q.claim(conversationID) {
		q.enqueued.Add(1)
		return nil
	}
	q.pending.Add(1)
	select {
	case q.queue <- conversationID:
		q.enqueued.Add(1)
		return nil
	case <-ctx.Done():
		q.release(conversationID)
		q.pending.Done()
		return ctx.Err()
	}
}

// Wait blocks until every scheduled sync has finished or ctx is done.
func (q *SyncQueue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and drains the queue. When ctx expires first the
// running syncs are cancelled.
func (q *SyncQueue) Close(ctx context.Context) error {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return nil
	}
	q.closed = true
	close(q.queue)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *SyncQueue) Stats() SyncStats {
	return SyncStats{
		Enqueued:  q.enqueued.Load(),
		Dropped:   q.dropped.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
	}
}

// claim reports whether the caller must put conversationID on the queue. A
// conversation already waiting needs nothing; one being synced is marked dirty.
func (q *SyncQueue) claim(conversationID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.state[conversationID]; ok {
		if st.running {
			st.dirty = true
		}
		return false
	}
	q.state[conversationID] = &syncState{}
	return true
}

func (q *SyncQueue) release(conversationID int64) {
	q.mu.Lock()
	delete(q.state, conversationID)
	q.mu.Unlock()
}

func (q *SyncQueue) worker() {
	defer q.workers.Done()
	for id := range q.queue {
		q.process(id)
		q.pending.Done()
	}
}

func (q *SyncQueue) process(conversationID int64) {
	q.mu.Lock()
	st := q.state[conversationID]
	st.running = true
	q.mu.Unlock()

	for {
		q.runWithRetry(conversationID)

		q.mu.Lock()
		if st.dirty && q.ctx.Err() == nil {
			st.dirty = false
			q.mu.Unlock()
			continue
		}
		delete(q.state, conversationID)
		q.mu.Unlock()
		return
	}
}

func (q *SyncQueue) runWithRetry(conversationID int64) {
	attempt := 0
	_, err := backoff.Retry(q.ctx, func() (struct{}, error) {
		attempt++
		err := q.syncOnce(q.ctx, conversationID)
		if err != nil && !isPermanentSyncError(err) {
			q.log.Warn("Embedding sync attempt failed", "conversation_id", conversationID, "attempt", attempt, "error", err)
		}
		if isPermanentSyncError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(q.opts.NewBackOff()),
		backoff.WithMaxTries(uint(q.opts.MaxAttempts)),
	)

	switch {
	case err == nil:
		q.succeeded.Add(1)
	case errors.Is(err, errConversationGone):
		q.log.Info("Conversation deleted before sync, skipping", "conversation_id", conversationID)
	default:
		q.failed.Add(1)
		q.log.Error("Embedding sync failed", "conversation_id", conversationID, "attempts", attempt, "error", err)
	}
}

func isPermanentSyncError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errConversationGone) {
		return true
	}
	var opErr *vectorstore.OperationError
	return errors.As(err, &opErr) && opErr.Code == vectorstore.OperationErrorValidation
}

// syncOnce embeds the current transcript of a conversation and stores it.
func (q *SyncQueue) syncOnce(ctx context.Context, conversationID int64) error {
	conv, err := q.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return errConversationGone
	}
	messages, err := q.store.GetMessagesByConversationID(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		q.log.Debug("Conversation has no messages, nothing to embed", "conversation_id", conversationID)
		return nil
	}

	vector, err := q.embedder.Embed(ctx, conversationDocument(messages))
	if err != nil {
		return fmt.Errorf("embed conversation: %w", err)
	}

	title := strings.TrimSpace(conv.Title)
	if title == "" {
		title = fmt.Sprintf("Conversation %d", conv.ID)
	}
	err = q.vectors.Upsert(ctx, vectorstore.Point{
		ID:     uint64(conv.ID),
		Vector: vector,
		Payload: map[string]any{
			"conversation_id": conv.ID,
			"user_id":         conv.UserID,
			"title":           title,
			"message_count":   len(messages),
		},
	})
	if err != nil {
		return err
	}

	vectorID := strconv.FormatInt(conv.ID, 10)
	if err := q.store.SetConversationVectorID(ctx, conv.ID, vectorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted after the upsert; drop the point written above.
			if derr := q.vectors.Delete(ctx, uint64(conv.ID)); derr != nil {
				q.log.Warn("Failed to delete vector of deleted conversation", "conversation_id", conv.ID, "error", derr)
			}
			return errConversationGone
		}
		return err
	}

	crmCtx, cancel := context.WithTimeout(ctx, q.opts.CRMTimeout)
	defer cancel()
	err = q.crm.SyncConversation(crmCtx, crm.ConversationSync{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Title:          title,
		MessageCount:   len(messages),
		VectorID:       vectorID,
	})
	if err != nil {
		q.log.Warn("CRM conversation sync failed", "conversation_id", conv.ID, "error", err)
	}
	q.log.Debug("Conversation embedding synced", "conversation_id", conv.ID, "message_count", len(messages))
	return nil
}

// conversationDocument renders messages as "role: content" joined by single spaces.
func conversationDocument(messages []store.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, string(m.Role)+": "+m.Content)
	}
	return strings.Join(parts, " ")
}
