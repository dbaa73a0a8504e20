package handler

import (
	"net/http"

	"sorvx-chat-go/pkg/database"

	"github.com/gin-gonic/gin"
)

// HealthHandler 报告后端存储的可达性。
type HealthHandler struct{}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check 依次探测 MySQL 与 Redis，任一不可达返回 503。
func (h *HealthHandler) Check(c *gin.Context) {
	status := gin.H{"mysql": "ok", "redis": "ok"}
	healthy := true

	if sqlDB, err := database.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status["mysql"] = "unavailable"
		healthy = false
	}
	if err := database.RDB.Ping(c.Request.Context()).Err(); err != nil {
		status["redis"] = "unavailable"
		healthy = false
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"code": code, "data": status})
}
