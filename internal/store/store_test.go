package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, name string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name+"@example.com", name, "hash")
	require.NoError(t, err)
	return u
}

func TestResolveDriver(t *testing.T) {
	driver, dsn := resolveDriver("postgres://u:p@localhost:5432/db?sslmode=disable")
	assert.Equal(t, driverPostgres, driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", dsn)

	driver, dsn = resolveDriver("educrm.db")
	assert.Equal(t, driverSQLite, driver)
	assert.Equal(t, "educrm.db?_foreign_keys=on", dsn)

	_, dsn = resolveDriver("file:x.db?cache=shared")
	assert.Equal(t, "file:x.db?cache=shared&_foreign_keys=on", dsn)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := mustUser(t, s, "ana")
	assert.True(t, u.IsActive)
	assert.NotZero(t, u.ID)

	_, err := s.CreateUser(ctx, "other@example.com", "ana", "hash")
	assert.ErrorIs(t, err, ErrDuplicate)

	byLogin, err := s.GetUserByLogin(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.NotNil(t, byLogin)
	assert.Equal(t, u.ID, byLogin.ID)

	// a username spelled like another user's email never matches by username
	clash, err := s.CreateUser(ctx, "clash@example.com", "bob@example.com", "hash")
	require.NoError(t, err)
	bob := mustUser(t, s, "bob")
	byLogin, err = s.GetUserByLogin(ctx, "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, byLogin)
	assert.Equal(t, bob.ID, byLogin.ID)
	assert.NotEqual(t, clash.ID, byLogin.ID)
	byLogin, err = s.GetUserByLogin(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, byLogin)
	assert.Equal(t, u.ID, byLogin.ID)

	missing, err := s.GetUserByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	newName := "ana2"
	updated, err := s.UpdateUser(ctx, u.ID, UserUpdate{Username: &newName})
	require.NoError(t, err)
	assert.Equal(t, "ana2", updated.Username)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = s.UpdateUser(ctx, 999, UserUpdate{Username: &newName})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCoursesFilterAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inst := mustUser(t, s, "instructor")

	for _, c := range []Course{
		{Title: "Go 101", Category: "programming", DifficultyLevel: "beginner"},
		{Title: "Go Concurrency", Category: "programming", DifficultyLevel: "advanced"},
		{Title: "Watercolour", Category: "art", DifficultyLevel: "beginner"},
	} {
		c := c
		c.InstructorID = inst.ID
		require.NoError(t, s.CreateCourse(ctx, &c))
	}

	programming, err := s.ListCourses(ctx, CourseFilter{Category: "programming"})
	require.NoError(t, err)
	require.Len(t, programming, 2)
	for _, c := range programming {
		assert.Equal(t, "programming", c.Category)
	}

	beginnerProg, err := s.ListCourses(ctx, CourseFilter{Category: "programming", Difficulty: "beginner"})
	require.NoError(t, err)
	require.Len(t, beginnerProg, 1)
	assert.Equal(t, "Go 101", beginnerProg[0].Title)

	page, err := s.ListCourses(ctx, CourseFilter{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Go Concurrency", page[0].Title)

	price := 49.5
	updated, err := s.UpdateCourse(ctx, page[0].ID, CourseUpdate{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 49.5, updated.Price)
	assert.Equal(t, "Go Concurrency", updated.Title)

	require.NoError(t, s.DeleteCourse(ctx, page[0].ID))
	assert.ErrorIs(t, s.DeleteCourse(ctx, page[0].ID), ErrNotFound)
}

func TestConversationOwnershipAndCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := mustUser(t, s, "owner")
	other := mustUser(t, s, "other")

	conv, err := s.CreateConversation(ctx, owner.ID, "Conversation abc")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)

	got, err := s.GetConversation(ctx, conv.ID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "non-owner must not see the conversation")

	for _, m := range []Message{
		{ConversationID: conv.ID, Role: RoleUser, Content: "hi"},
		{ConversationID: conv.ID, Role: RoleAssistant, Content: "hello"},
	} {
		m := m
		require.NoError(t, s.CreateMessage(ctx, &m))
	}
	msgs, err := s.GetMessagesByConversationID(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)

	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID, other.ID), ErrNotFound)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID, owner.ID))
	n, err := s.CountMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID, owner.ID), ErrNotFound)
}

func TestCreateMessageRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := mustUser(t, s, "owner")
	conv, err := s.CreateConversation(ctx, owner.ID, "t")
	require.NoError(t, err)

	err = s.CreateMessage(ctx, &Message{ConversationID: conv.ID, Role: "robot", Content: "x"})
	assert.Error(t, err)
}

func TestConversationVectorIDAndListing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := mustUser(t, s, "owner")
	other := mustUser(t, s, "other")

	a, err := s.CreateConversation(ctx, owner.ID, "a")
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, owner.ID, "b")
	require.NoError(t, err)
	c, err := s.CreateConversation(ctx, other.ID, "c")
	require.NoError(t, err)

	require.NoError(t, s.SetConversationVectorID(ctx, a.ID, "1"))
	got, err := s.GetConversationByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.VectorID)
	assert.Equal(t, "1", *got.VectorID)

	list, err := s.ListConversationsByUser(ctx, owner.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	subset, err := s.ListConversationsByIDs(ctx, owner.ID, []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Len(t, subset, 2, "conversations of other users are filtered out")

	ids, err := s.ListConversationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, ids)
}
