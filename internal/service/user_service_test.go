package service

import (
	"testing"

	"sorvx-chat-go/pkg/hash"
	"sorvx-chat-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(repo *fakeUserRepository) UserService {
	return NewUserService(repo, token.NewJWTManager("test-secret", 1, 7))
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	repo := newFakeUserRepository()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret-pass")
	require.NoError(t, err)

	_, err = svc.Register("alice@example.com", "other-pass")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegister_HashesPassword(t *testing.T) {
	repo := newFakeUserRepository()
	svc := newTestUserService(repo)

	user, err := svc.Register("alice@example.com", "secret-pass")
	require.NoError(t, err)

	assert.NotEqual(t, "secret-pass", user.Password, "密码不允许明文入库")
	assert.True(t, hash.CheckPasswordHash("secret-pass", user.Password))
}

func TestLogin_IssuesTokenPair(t *testing.T) {
	repo := newFakeUserRepository()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret-pass")
	require.NoError(t, err)

	access, refresh, err := svc.Login("alice@example.com", "secret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	_, _, err = svc.Login("alice@example.com", "wrong-pass")
	assert.Error(t, err)

	_, _, err = svc.Login("nobody@example.com", "secret-pass")
	assert.Error(t, err)
}

func TestRefreshToken_ReissuesTokens(t *testing.T) {
	repo := newFakeUserRepository()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret-pass")
	require.NoError(t, err)

	_, refresh, err := svc.Login("alice@example.com", "secret-pass")
	require.NoError(t, err)

	access2, refresh2, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access2)
	assert.NotEmpty(t, refresh2)

	_, _, err = svc.RefreshToken("not-a-jwt")
	assert.Error(t, err)
}
