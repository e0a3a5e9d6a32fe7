package service

import (
	"context"
	"testing"

	"github.com/kube-rca/auth/internal/hasher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticateByPassword(t *testing.T) {
	env := newTestEnv(t, testAuthConfig())
	seeded := env.seedUser(t, 1, "a@x.com", "Secret1")
	ctx := context.Background()

	user, err := env.svc.authn.AuthenticateByPassword(ctx, "a@x.com", "Secret1")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)

	_, wrongPassword := env.svc.authn.AuthenticateByPassword(ctx, "a@x.com", "wrong")
	_, unknownEmail := env.svc.authn.AuthenticateByPassword(ctx, "nouser@x.com", "Secret1")

	assert.ErrorIs(t, wrongPassword, ErrIncorrectCredentials)
	assert.ErrorIs(t, unknownEmail, ErrIncorrectCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthenticateByPasswordStoreFailure(t *testing.T) {
	h, err := hasher.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	authn, err := NewAuthenticator(brokenStore{}, h)
	require.NoError(t, err)

	_, err = authn.AuthenticateByPassword(context.Background(), "a@x.com", "Secret1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrIncorrectCredentials)

	_, err = authn.AuthenticateRefresh(context.Background(), 1, "token")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestAuthenticateRefreshWithoutStoredHash(t *testing.T) {
	env := newTestEnv(t, testAuthConfig())
	env.seedUser(t, 3, "c@x.com", "Secret1")
	ctx := context.Background()

	ok, err := env.svc.authn.AuthenticateRefresh(ctx, 3, "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.svc.authn.AuthenticateRefresh(ctx, 404, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticatorDoesNotMutateStore(t *testing.T) {
	env := newTestEnv(t, testAuthConfig())
	env.seedUser(t, 1, "a@x.com", "Secret1")
	ctx := context.Background()

	before, err := env.store.GetUserByID(ctx, 1)
	require.NoError(t, err)

	_, _ = env.svc.authn.AuthenticateByPassword(ctx, "a@x.com", "Secret1")
	_, _ = env.svc.authn.AuthenticateByPassword(ctx, "a@x.com", "wrong")
	_, _ = env.svc.authn.AuthenticateRefresh(ctx, 1, "token")

	after, err := env.store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
