package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", "crm-key", 5*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetUserSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/users/7", r.URL.Path)
		assert.Equal(t, "Bearer crm-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":              7,
			"interests":       []string{"ai", "data"},
			"education_level": "bachelor",
			"career_goals":    []string{"ml engineer"},
		})
	})

	u, err := c.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"ai", "data"}, u.Interests)
	require.NotNil(t, u.EducationLevel)
	assert.Equal(t, "bachelor", *u.EducationLevel)
	assert.Empty(t, u.EnrolledCourses)
}

func TestGetUserNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "No query results"})
	})

	_, err := c.GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var crmErr *Error
	require.ErrorAs(t, err, &crmErr)
	assert.Equal(t, "No query results", crmErr.Message)
}

func TestGetCoursesPassesFiltersAndUnwrapsData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "programming", q.Get("category"))
		assert.Equal(t, "beginner", q.Get("difficulty"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "100", q.Get("per_page"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"id": 40, "title": "Rust basics", "category": "programming"}},
		})
	})

	courses, err := c.GetCourses(context.Background(), CourseQuery{Category: "programming", Difficulty: "beginner"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, int64(40), courses[0].ID)
}

func TestGetCoursesEmptyDataIsNonNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	courses, err := c.GetCourses(context.Background(), CourseQuery{})
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}

func TestSyncConversationPayload(t *testing.T) {
	var got ConversationSync
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/conversations/sync", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	err := c.SyncConversation(context.Background(), ConversationSync{
		ConversationID: 3, UserID: 9, Title: "Conversation 3", MessageCount: 4, VectorID: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ConversationID)
	assert.Equal(t, 4, got.MessageCount)
}

func TestServerErrorIsTyped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	err := c.DeleteCourse(context.Background(), 5)
	var crmErr *Error
	require.ErrorAs(t, err, &crmErr)
	assert.Equal(t, http.StatusInternalServerError, crmErr.StatusCode)
	assert.False(t, IsNotFound(err))
}

func TestNoop(t *testing.T) {
	var g Gateway = Noop{}
	_, err := g.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, g.SyncConversation(context.Background(), ConversationSync{}))
}
