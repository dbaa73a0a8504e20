package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sorvx-chat-go/internal/repository"
	"sorvx-chat-go/pkg/hash"
	"sorvx-chat-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 重置令牌的固定有效期。
const ResetTokenTTL = time.Hour

// MinPasswordLength 是注册与重置共用的最短密码长度，由调用方在
// 进入服务层之前强制执行。
const MinPasswordLength = 6

// Notifier 负责把重置链接投递给用户，投递结果不影响令牌签发。
type Notifier interface {
	SendResetLink(ctx context.Context, email, resetLink string) error
}

// ResetService 管理单次使用、限时有效的密码重置令牌。
type ResetService interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
}

type resetService struct {
	userRepo repository.UserRepository
	notifier Notifier
	baseURL  string
}

// NewResetService 创建一个新的 ResetService 实例。
// baseURL 用于构造邮件中的重置链接。
func NewResetService(userRepo repository.UserRepository, notifier Notifier, baseURL string) ResetService {
	return &resetService{
		userRepo: userRepo,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// RequestPasswordReset 为邮箱对应的账号签发重置令牌。
// 邮箱不存在时同样返回成功（不暴露账号是否存在），但不做任何写入，
// 也不触发通知。已存在的未消费令牌会被新令牌直接覆盖。
func (s *resetService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 对调用方报告成功，避免泄露账号是否存在
			log.Infof("[ResetService] 忽略未注册邮箱的重置请求")
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// uuid v4 含 122 位随机熵，足以抵抗猜测
	resetToken := uuid.NewString()
	expiry := time.Now().Add(ResetTokenTTL)

	if err := s.userRepo.SetResetToken(user.ID, resetToken, expiry); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// 投递失败只记日志，令牌保持有效，运维可依据日志手动补发
	resetLink := fmt.Sprintf("%s/reset-password/%s", s.baseURL, resetToken)
	if err := s.notifier.SendResetLink(ctx, user.Email, resetLink); err != nil {
		log.Warnf("[ResetService] 重置邮件投递失败, userID: %d, error: %v", user.ID, err)
	}

	return nil
}

// ResetPassword 校验并消费一个重置令牌。
// 密码最短长度由 handler 在调用前校验，这里不再重复。
// 校验与清除必须是同一条条件 UPDATE（匹配令牌值），保证并发请求下
// 至多一次消费成功；清除后的再次消费因查找失败返回 ErrInvalidToken。
func (s *resetService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	user, err := s.userRepo.FindByResetToken(resetToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.ResetTokenExpiry == nil || user.ResetTokenExpiry.Before(time.Now()) {
		return ErrExpiredToken
	}

	hashedPassword, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}

	consumed, err := s.userRepo.ConsumeResetToken(resetToken, hashedPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !consumed {
		// 查找和更新之间令牌被并发消费或替换
		return ErrInvalidToken
	}

	log.Infof("[ResetService] 密码重置成功, userID: %d", user.ID)
	return nil
}
