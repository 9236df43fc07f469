package core

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/llm"
	"educrm.io/ai-agent/internal/store"
	"educrm.io/ai-agent/internal/vectorstore"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *store.Store, name string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name+"@example.com", name, "hash")
	require.NoError(t, err)
	return u
}

type fakeCompleter struct {
	mu      sync.Mutex
	calls   [][]llm.Message
	reply   func(call int, messages []llm.Message) (string, error)
	lastTmp float32
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, temperature float32) (string, error) {
	f.mu.Lock()
	cp := make([]llm.Message, len(messages))
	copy(cp, messages)
	f.calls = append(f.calls, cp)
	call := len(f.calls)
	f.lastTmp = temperature
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return "assistant reply", nil
	}
	return reply(call, cp)
}

func (f *fakeCompleter) Calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.calls...)
}

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
	dim   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	dim := f.dim
	if dim == 0 {
		dim = 3
	}
	return make([]float32, dim), nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeVectors struct {
	mu         sync.Mutex
	upserts    []vectorstore.Point
	deletes    []uint64
	searches   []vectorstore.SearchRequest
	matches    []vectorstore.Match
	upsertErr  func(n int) error
	deleteErr  error
	upsertHook func()
}

func (f *fakeVectors) Enabled() bool { return true }
func (f *fakeVectors) EnsureCollection(context.Context) error { return nil }

func (f *fakeVectors) Upsert(_ context.Context, p vectorstore.Point) error {
	if f.upsertHook != nil {
		f.upsertHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, p)
	if f.upsertErr != nil {
		return f.upsertErr(len(f.upserts))
	}
	return nil
}

func (f *fakeVectors) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeVectors) Search(_ context.Context, req vectorstore.SearchRequest) ([]vectorstore.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	return f.matches, nil
}

func (f *fakeVectors) Upserts() []vectorstore.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vectorstore.Point(nil), f.upserts...)
}

func (f *fakeVectors) Deletes() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.deletes...)
}

type fakeCRM struct {
	crm.Noop
	mu        sync.Mutex
	user      *crm.UserProfile
	userErr   error
	courses   []crm.Course
	courseErr error
	synced    []crm.ConversationSync
	deadlines []time.Time
	created   []crm.Course
	updated   []int64
	deleted   []int64
	users     []crm.UserPayload
}

func (f *fakeCRM) GetUser(context.Context, int64) (*crm.UserProfile, error) {
	return f.user, f.userErr
}

func (f *fakeCRM) GetCourses(context.Context, crm.CourseQuery) ([]crm.Course, error) {
	return f.courses, f.courseErr
}

func (f *fakeCRM) SyncConversation(ctx context.Context, s crm.ConversationSync) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, s)
	if deadline, ok := ctx.Deadline(); ok {
		f.deadlines = append(f.deadlines, deadline)
	}
	return nil
}

func (f *fakeCRM) CreateCourse(_ context.Context, c crm.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCRM) UpdateCourse(_ context.Context, id int64, _ crm.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, id)
	return nil
}

func (f *fakeCRM) DeleteCourse(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCRM) CreateUser(_ context.Context, u crm.UserPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
	return nil
}

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingEnqueuer) Enqueue(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return true
}

func (r *recordingEnqueuer) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}
