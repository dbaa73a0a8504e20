// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务错误分类。handler 层用 errors.Is 将其翻译为 HTTP 状态码
// 与不泄露内部细节的提示文案。
var (
	// ErrValidation 表示请求输入不合法，未发生任何数据变更。
	ErrValidation = errors.New("validation failed")
	// ErrInvalidToken 表示重置令牌不存在或已被消费。
	ErrInvalidToken = errors.New("invalid reset token")
	// ErrExpiredToken 表示重置令牌已过期，过期令牌永远拒绝消费。
	ErrExpiredToken = errors.New("expired reset token")
	// ErrUnauthorized 表示会话用户不拥有要操作的资源。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound 表示引用的资源不存在。
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable 表示后端存储暂时不可用，本层不做自动重试。
	ErrStoreUnavailable = errors.New("store unavailable")
)
