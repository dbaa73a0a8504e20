package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sorvx-chat-go/internal/reveal"
	"sorvx-chat-go/internal/service"
	"sorvx-chat-go/pkg/log"
	"sorvx-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 聊天连接：
// 实时对话的流式直通，以及已存储助手消息的逐字重放。
type ChatHandler struct {
	chatService   service.ChatService
	userService   service.UserService
	jwtManager    *token.JWTManager
	stopToken     string
	stopTokenLock sync.Mutex
	// 每连接停止标志
	stopFlags sync.Map // key: session pointer string, value: bool
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// GetWebsocketStopToken 返回一个可用于停止流的令牌。
func (h *ChatHandler) GetWebsocketStopToken(c *gin.Context) {
	h.stopTokenLock.Lock()
	defer h.stopTokenLock.Unlock()
	// 在多实例部署中应放入 Redis，这里使用单一轮换令牌
	h.stopToken = "WSS_STOP_CMD_" + token.GenerateRandomString(16)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"cmdToken": h.stopToken}})
}

// wsCommand 是客户端经 WebSocket 发来的指令。
type wsCommand struct {
	Type      string `json:"type"` // "message" | "replay" | "stop"
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	CmdToken  string `json:"_internal_cmd_token"`
}

// wsFrameWriter 把渲染帧编码为 JSON 写入 WebSocket。
// 动画帧来自定时器回调，与读循环的应答写入并发，需要互斥。
type wsFrameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// WriteFrame 满足 reveal.FrameWriter 接口。
func (w *wsFrameWriter) WriteFrame(frame reveal.Frame) error {
	return w.writeJSON(map[string]interface{}{
		"type": "frame",
		"text": frame.Text,
		"html": frame.HTML,
		"done": frame.Done,
	})
}

func (w *wsFrameWriter) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	user, err := h.userService.GetProfile(claims.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %d", user.ID)

	fw := &wsFrameWriter{conn: conn}

	// 当前连接上正在播放的重放动画；连接关闭或新指令到来时取消，
	// 保证没有残留定时器在视图销毁后继续写帧。
	var activeAnim *reveal.Animation
	defer func() {
		if activeAnim != nil {
			activeAnim.Cancel()
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			// 非 JSON 负载按新对话的用户输入处理
			cmd = wsCommand{Type: "message", Content: string(message)}
		}

		switch cmd.Type {
		case "stop":
			h.stopTokenLock.Lock()
			valid := cmd.CmdToken == h.stopToken
			h.stopTokenLock.Unlock()
			if valid {
				h.stopFlags.Store(sessionKey(conn), true)
				_ = fw.writeJSON(map[string]interface{}{
					"type":      "stop",
					"message":   "响应已停止",
					"timestamp": time.Now().UnixMilli(),
				})
			}

		case "replay":
			if activeAnim != nil {
				activeAnim.Cancel()
				activeAnim = nil
			}
			anim, err := h.chatService.ReplayMessage(c.Request.Context(), cmd.ChatID, cmd.MessageID, user.ID, fw)
			if err != nil {
				log.Warnf("重放消息失败: %v", err)
				_ = fw.writeJSON(map[string]string{"error": "无法重放该消息"})
				continue
			}
			activeAnim = anim

		case "message":
			if cmd.Content == "" {
				continue
			}
			// 清除旧停止标志
			h.stopFlags.Delete(sessionKey(conn))
			shouldStop := func() bool {
				v, ok := h.stopFlags.Load(sessionKey(conn))
				return ok && v.(bool)
			}

			chatID, err := h.chatService.StreamTurn(c.Request.Context(), cmd.ChatID, user, cmd.Content, fw, shouldStop)
			if err != nil {
				log.Errorf("处理流式响应失败: %v", err)
				_ = fw.writeJSON(map[string]string{"error": "AI服务暂时不可用，请稍后重试"})
			}
			// 无论成败都发送 completion 通知，客户端据此复位输入状态
			_ = fw.writeJSON(map[string]interface{}{
				"type":      "completion",
				"status":    "finished",
				"chatId":    chatID,
				"timestamp": time.Now().UnixMilli(),
			})

		default:
			log.Warnf("未知的 WebSocket 指令类型: %s", cmd.Type)
		}
	}
}

func sessionKey(conn *websocket.Conn) string {
	return fmt.Sprintf("%p", conn)
}
