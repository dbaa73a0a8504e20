package handler

import (
	"errors"
	"net/http"

	"sorvx-chat-go/internal/service"
	"sorvx-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理认证与密码重置相关的 API 请求。
type AuthHandler struct {
	userService  service.UserService
	resetService service.ResetService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService, resetService service.ResetService) *AuthHandler {
	return &AuthHandler{userService: userService, resetService: resetService}
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	accessToken, refreshToken, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "无效的 refresh token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// ForgotPasswordRequest 定义了发起密码重置 API 的请求体结构。
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword 处理发起密码重置的请求。
// 无论邮箱是否注册都返回相同的成功响应，避免探测账号是否存在。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请提供合法的邮箱地址",
		})
		return
	}

	if err := h.resetService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "如果该邮箱已注册，重置链接将发送至您的邮箱",
	})
}

// ResetPasswordRequest 定义了提交新密码 API 的请求体结构。
// 密码最短长度策略在这里强制执行，服务层不再重复校验。
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// ResetPassword 处理提交新密码的请求。
// 无效令牌与过期令牌对用户呈现同一个笼统的失败文案，
// 内部区分两种情况分别记录日志。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：密码至少 6 个字符",
		})
		return
	}

	err := h.resetService.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrExpiredToken) {
			log.Warnf("ResetPassword: 令牌校验失败: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "重置密码失败",
			})
			return
		}
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "密码重置成功",
	})
}
