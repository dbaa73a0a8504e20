// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"sorvx-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// 认证、重置与 WebSocket 相关路径的请求/响应体包含密码、令牌等
// 敏感内容，不落日志。
func sensitivePath(path string) bool {
	return strings.Contains(path, "/auth/") ||
		strings.Contains(path, "/chat/") ||
		strings.HasSuffix(path, "/login") ||
		strings.HasSuffix(path, "/register")
}

// loggablePath 抹去路径中携带的凭证段。WebSocket 路由把访问令牌
// 放在路径上，令牌值永远不允许写进日志。
func loggablePath(path string) string {
	if strings.HasPrefix(path, "/chat/") {
		return "/chat/[REDACTED]"
	}
	return path
}

// RequestLogger 是一个 Gin 中间件，用于记录详细的请求和响应日志。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		redact := sensitivePath(path)

		// 读取并重新缓存请求体
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		// 使用自定义的 ResponseWriter 捕获响应
		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		latency := time.Since(startTime)

		reqBody := string(requestBody)
		respBody := blw.body.String()
		if redact {
			reqBody = "[REDACTED]"
			respBody = "[REDACTED]"
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", loggablePath(path),
			"requestBody", reqBody,
			"responseBody", respBody,
		)
	}
}
