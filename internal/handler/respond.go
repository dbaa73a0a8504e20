// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"sorvx-chat-go/internal/service"
	"sorvx-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// abortWithServiceError 把业务错误翻译为 HTTP 响应。
// 对外文案保持最小化：不包含堆栈、令牌值或内部标识，
// 详细原因只进服务端日志。
func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "无权访问该资源"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "资源不存在"})
	default:
		log.Error("请求处理失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务暂时不可用，请稍后重试"})
	}
}
