package handler

import (
	"net/http"
	"time"

	"sorvx-chat-go/internal/model"
	"sorvx-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// HistoryHandler 处理对话历史的 HTTP API 请求。
type HistoryHandler struct {
	chatService service.ChatService
}

// NewHistoryHandler 创建一个新的 HistoryHandler。
func NewHistoryHandler(chatService service.ChatService) *HistoryHandler {
	return &HistoryHandler{chatService: chatService}
}

// ChatSummary 是对话列表项的响应结构，不包含完整消息体。
type ChatSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// summaryTitle 取第一条用户消息的文本开头作为列表标题。
func summaryTitle(messages model.MessageList) string {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		text := []rune(m.Text())
		if len(text) > 50 {
			return string(text[:50]) + "…"
		}
		return string(text)
	}
	return "New chat"
}

// ListChats 返回当前用户的全部对话，按创建时间倒序。
func (h *HistoryHandler) ListChats(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	chats, err := h.chatService.ListChats(c.Request.Context(), user.ID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summaries = append(summaries, ChatSummary{
			ID:        chat.ID,
			Title:     summaryTitle(chat.Messages),
			CreatedAt: model.LocalTime(chat.CreatedAt),
		})
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": summaries, "message": "success"})
}

// GetChat 返回单个对话的完整消息序列。
func (h *HistoryHandler) GetChat(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	chat, err := h.chatService.GetChat(c.Request.Context(), c.Param("chatId"), user.ID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": chat, "message": "success"})
}

// SaveChatRequest 定义了保存对话 API 的请求体结构。
type SaveChatRequest struct {
	Messages model.MessageList `json:"messages" binding:"required"`
}

// SaveChat 覆盖保存对话的完整消息序列（last-writer-wins）。
func (h *HistoryHandler) SaveChat(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	var req SaveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：消息序列格式不正确",
		})
		return
	}

	chat, err := h.chatService.SaveChat(c.Request.Context(), c.Param("chatId"), user.ID, req.Messages)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"id":        chat.ID,
			"createdAt": chat.CreatedAt.Format(time.RFC3339),
		},
	})
}

// DeleteChat 删除一个对话，仅拥有者可删。
func (h *HistoryHandler) DeleteChat(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	if err := h.chatService.DeleteChat(c.Request.Context(), c.Param("chatId"), user.ID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "对话已删除"})
}
