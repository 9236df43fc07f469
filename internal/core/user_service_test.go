package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educrm.io/ai-agent/internal/auth"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
)

func newUserService(t *testing.T) (*UserService, *store.Store, *fakeCRM, *CRMMirror) {
	t.Helper()
	st := newTestStore(t)
	gateway := &fakeCRM{}
	mirror := NewCRMMirror(gateway, logger.Nop(), time.Second)
	return NewUserService(st, auth.NewJWT("test-secret", time.Hour), mirror, logger.Nop()), st, gateway, mirror
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, gateway, mirror := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: " Ana@Example.com ", Username: "ana", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	mirror.Wait()
	require.Len(t, gateway.users, 1)
	assert.Equal(t, user.ID, gateway.users[0].ID)

	for _, login := range []string{"ana", "ana@example.com"} {
		token, err := svc.Login(ctx, login, "correct-horse")
		require.NoError(t, err, login)
		authed, err := svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, authed.ID)
	}

	_, err = svc.Login(ctx, "ana", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newUserService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "not-an-email", Username: "ana", Password: "long-enough"},
		{Email: "ana@example.com", Username: "  ", Password: "long-enough"},
		{Email: "ana@example.com", Username: "ana", Password: "short"},
		{Email: "ana@example.com", Username: "ana", Password: strings.Repeat("x", 80)},
		{Email: "ana@example.com", Username: "ana@home", Password: "long-enough"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", in)
	}
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	svc, _, _, _ := newUserService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Username: "ana", Password: "long-enough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "ana@example.com", Username: "other", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.Register(ctx, RegisterInput{Email: "other@example.com", Username: "ana", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInactiveUserIsForbidden(t *testing.T) {
	svc, st, _, _ := newUserService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Username: "ana", Password: "long-enough"})
	require.NoError(t, err)
	token, err := svc.Login(ctx, "ana", "long-enough")
	require.NoError(t, err)

	inactive := false
	_, err = st.UpdateUser(ctx, user.ID, store.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ana", "long-enough")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, _, _, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	ghost, err := auth.NewJWT("test-secret", time.Hour).Generate(999)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateUser(t *testing.T) {
	svc, _, _, mirror := newUserService(t)
	ctx := context.Background()
	ana, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Username: "ana", Password: "long-enough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "bob@example.com", Username: "bob", Password: "long-enough"})
	require.NoError(t, err)

	name := "ana-maria"
	pw := "even-longer-secret"
	updated, err := svc.Update(ctx, ana.ID, UserPatch{Username: &name, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "ana-maria", updated.Username)
	_, err = svc.Login(ctx, "ana-maria", pw)
	assert.NoError(t, err)

	tooLong := strings.Repeat("x", 80)
	_, err = svc.Update(ctx, ana.ID, UserPatch{Password: &tooLong})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.Login(ctx, "ana-maria", pw)
	assert.NoError(t, err)

	taken := "bob@example.com"
	_, err = svc.Update(ctx, ana.ID, UserPatch{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Update(ctx, 999, UserPatch{Username: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	mirror.Wait()
}

func TestListUsersPaging(t *testing.T) {
	svc, st, _, _ := newUserService(t)
	for _, name := range []string{"a", "b", "c"} {
		createUser(t, st, name)
	}
	users, err := svc.List(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNormalizePage(t *testing.T) {
	skip, limit, err := NormalizePage(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, skip)
	assert.Equal(t, 100, limit)

	_, limit, err = NormalizePage(10, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	for _, tc := range [][2]int{{-1, 10}, {0, -1}, {0, 101}} {
		_, _, err := NormalizePage(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidArgument, "%v", tc)
	}
}
