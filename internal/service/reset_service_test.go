package service

import (
	"context"
	"testing"
	"time"

	"sorvx-chat-go/internal/model"
	"sorvx-chat-go/pkg/hash"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepository 是 UserRepository 的内存实现。
type fakeUserRepository struct {
	users       map[uint]*model.User
	failConsume bool
}

func newFakeUserRepository(users ...*model.User) *fakeUserRepository {
	repo := &fakeUserRepository{users: make(map[uint]*model.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepository) Create(user *model.User) error {
	if user.ID == 0 {
		user.ID = uint(len(f.users) + 1)
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepository) Update(user *model.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepository) FindByEmail(email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) FindByID(userID uint) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepository) FindByResetToken(token string) (*model.User, error) {
	for _, u := range f.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) SetResetToken(userID uint, resetToken string, expiry time.Time) error {
	u := f.users[userID]
	u.ResetToken = &resetToken
	u.ResetTokenExpiry = &expiry
	return nil
}

func (f *fakeUserRepository) ConsumeResetToken(resetToken, passwordHash string) (bool, error) {
	if f.failConsume {
		return false, nil
	}
	for _, u := range f.users {
		if u.ResetToken != nil && *u.ResetToken == resetToken {
			u.Password = passwordHash
			u.ResetToken = nil
			u.ResetTokenExpiry = nil
			return true, nil
		}
	}
	return false, nil
}

// stubNotifier 记录投递的重置链接。
type stubNotifier struct {
	emails []string
	links  []string
	err    error
}

func (n *stubNotifier) SendResetLink(_ context.Context, email, resetLink string) error {
	if n.err != nil {
		return n.err
	}
	n.emails = append(n.emails, email)
	n.links = append(n.links, resetLink)
	return nil
}

func testUser() *model.User {
	return &model.User{ID: 1, Email: "alice@example.com", Password: "old-hash"}
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	notifier := &stubNotifier{}
	svc := NewResetService(repo, notifier, "https://app.example.com")

	err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	assert.Empty(t, notifier.links, "未注册邮箱不应触发任何通知")
	assert.Nil(t, repo.users[1].ResetToken)
	assert.Nil(t, repo.users[1].ResetTokenExpiry)
}

func TestRequestPasswordReset_IssuesTokenPair(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	notifier := &stubNotifier{}
	svc := NewResetService(repo, notifier, "https://app.example.com/")

	before := time.Now()
	err := svc.RequestPasswordReset(context.Background(), "alice@example.com")

	require.NoError(t, err)
	u := repo.users[1]
	require.NotNil(t, u.ResetToken)
	require.NotNil(t, u.ResetTokenExpiry, "令牌与过期时间必须成对写入")
	assert.WithinDuration(t, before.Add(ResetTokenTTL), *u.ResetTokenExpiry, 2*time.Second)

	require.Len(t, notifier.links, 1)
	assert.Equal(t, "alice@example.com", notifier.emails[0])
	assert.Equal(t, "https://app.example.com/reset-password/"+*u.ResetToken, notifier.links[0])
}

func TestRequestPasswordReset_ReissueInvalidatesOldToken(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	svc := NewResetService(repo, &stubNotifier{}, "https://app.example.com")

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	oldToken := *repo.users[1].ResetToken

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	newToken := *repo.users[1].ResetToken
	require.NotEqual(t, oldToken, newToken)

	// 旧令牌已被覆盖，消费失败
	err := svc.ResetPassword(context.Background(), oldToken, "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// 新令牌正常消费
	require.NoError(t, svc.ResetPassword(context.Background(), newToken, "brand-new-pass"))
}

func TestRequestPasswordReset_NotifierFailureKeepsToken(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	notifier := &stubNotifier{err: assert.AnError}
	svc := NewResetService(repo, notifier, "https://app.example.com")

	err := svc.RequestPasswordReset(context.Background(), "alice@example.com")

	require.NoError(t, err, "投递失败不应让请求失败")
	require.NotNil(t, repo.users[1].ResetToken, "令牌必须保持有效")
}

func TestResetPassword_ConsumesOnce(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	svc := NewResetService(repo, &stubNotifier{}, "https://app.example.com")

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	token := *repo.users[1].ResetToken

	require.NoError(t, svc.ResetPassword(context.Background(), token, "brand-new-pass"))

	u := repo.users[1]
	assert.Nil(t, u.ResetToken, "消费后令牌对必须一起清空")
	assert.Nil(t, u.ResetTokenExpiry)
	assert.True(t, hash.CheckPasswordHash("brand-new-pass", u.Password))

	// 第二次消费同一令牌必须失败
	err := svc.ResetPassword(context.Background(), token, "another-pass")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPassword_UnknownToken(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	svc := NewResetService(repo, &stubNotifier{}, "https://app.example.com")

	err := svc.ResetPassword(context.Background(), "no-such-token", "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	u := testUser()
	token := "expired-token"
	expiry := time.Now().Add(-time.Minute)
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiry
	repo := newFakeUserRepository(u)
	svc := NewResetService(repo, &stubNotifier{}, "https://app.example.com")

	err := svc.ResetPassword(context.Background(), token, "brand-new-pass")
	assert.ErrorIs(t, err, ErrExpiredToken)

	// 过期令牌不会被消费，重复尝试仍然是过期
	err = svc.ResetPassword(context.Background(), token, "brand-new-pass")
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Equal(t, "old-hash", repo.users[1].Password)
}

func TestResetPassword_LostRace(t *testing.T) {
	repo := newFakeUserRepository(testUser())
	svc := NewResetService(repo, &stubNotifier{}, "https://app.example.com")

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	token := *repo.users[1].ResetToken

	// 查找与条件更新之间令牌被并发消费
	repo.failConsume = true
	err := svc.ResetPassword(context.Background(), token, "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, "old-hash", repo.users[1].Password)
}
