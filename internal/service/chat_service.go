package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sorvx-chat-go/internal/model"
	"sorvx-chat-go/internal/repository"
	"sorvx-chat-go/internal/reveal"
	"sorvx-chat-go/pkg/llm"
	"sorvx-chat-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatService 定义了对话相关的业务操作。
// 所有读写都先校验会话用户与对话归属，归属不符返回 ErrUnauthorized。
type ChatService interface {
	SaveChat(ctx context.Context, chatID string, userID uint, messages model.MessageList) (*model.Chat, error)
	GetChat(ctx context.Context, chatID string, userID uint) (*model.Chat, error)
	ListChats(ctx context.Context, userID uint) ([]model.Chat, error)
	DeleteChat(ctx context.Context, chatID string, userID uint) error
	StreamTurn(ctx context.Context, chatID string, user *model.User, input string, w reveal.FrameWriter, shouldStop func() bool) (string, error)
	ReplayMessage(ctx context.Context, chatID, messageID string, userID uint, w reveal.FrameWriter) (*reveal.Animation, error)
}

type chatService struct {
	chatRepo  repository.ChatRepository
	llmClient llm.Client
	renderer  *reveal.Renderer
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, llmClient llm.Client, renderer *reveal.Renderer) ChatService {
	return &chatService{
		chatRepo:  chatRepo,
		llmClient: llmClient,
		renderer:  renderer,
	}
}

// SaveChat 保存对话的完整消息序列。
// chatID 为空时由服务端生成；对话已存在时覆盖其 messages 字段，
// createdAt 保持不变（last-writer-wins，不做合并）。
func (s *chatService) SaveChat(ctx context.Context, chatID string, userID uint, messages model.MessageList) (*model.Chat, error) {
	if chatID == "" {
		chatID = uuid.NewString()
	}

	existing, err := s.chatRepo.FindByID(chatID)
	if err == nil {
		if existing.UserID != userID {
			return nil, ErrUnauthorized
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	chat := &model.Chat{ID: chatID, UserID: userID, Messages: messages}
	if err := s.chatRepo.Save(chat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	saved, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return saved, nil
}

// GetChat 获取一个对话，校验归属。
func (s *chatService) GetChat(ctx context.Context, chatID string, userID uint) (*model.Chat, error) {
	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if chat.UserID != userID {
		return nil, ErrUnauthorized
	}
	return chat, nil
}

// ListChats 返回用户的全部对话，按创建时间倒序。
func (s *chatService) ListChats(ctx context.Context, userID uint) ([]model.Chat, error) {
	chats, err := s.chatRepo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return chats, nil
}

// DeleteChat 删除一个对话。非拥有者删除失败且对话行保持不变。
func (s *chatService) DeleteChat(ctx context.Context, chatID string, userID uint) error {
	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if chat.UserID != userID {
		return ErrUnauthorized
	}
	if err := s.chatRepo.DeleteByID(chatID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// StreamTurn 执行一轮实时对话：把用户输入连同历史发给模型，
// 将到达的增量以流式直通方式写给客户端（到达延迟即节奏，不做逐字动画），
// 结束后把完整的一问一答追加到对话并保存。返回生成的 chatID。
func (s *chatService) StreamTurn(ctx context.Context, chatID string, user *model.User, input string, w reveal.FrameWriter, shouldStop func() bool) (string, error) {
	if chatID == "" {
		chatID = uuid.NewString()
	}

	var history model.MessageList
	existing, err := s.chatRepo.FindByID(chatID)
	if err == nil {
		if existing.UserID != user.ID {
			return "", ErrUnauthorized
		}
		history = existing.Messages
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	assistantMsgID := uuid.NewString()
	interceptor := &streamInterceptor{
		ctx:        ctx,
		renderer:   s.renderer,
		frames:     w,
		shouldStop: shouldStop,
		chatID:     chatID,
		messageID:  assistantMsgID,
	}

	if err := s.llmClient.StreamChat(ctx, composeLLMMessages(history, input), interceptor); err != nil {
		return "", err
	}

	fullAnswer := interceptor.builder.String()

	// 完成帧，通知客户端本轮已结束
	if err := w.WriteFrame(reveal.Frame{Text: fullAnswer, HTML: s.renderer.Format(fullAnswer), Done: true}); err != nil {
		log.Warnf("[ChatService] 发送完成帧失败: %v", err)
	}

	if len(fullAnswer) > 0 {
		now := time.Now()
		history = append(history,
			model.ChatMessage{ID: uuid.NewString(), Role: "user", Parts: []model.MessagePart{model.TextPart(input)}, Timestamp: now},
			model.ChatMessage{ID: assistantMsgID, Role: "assistant", Parts: []model.MessagePart{model.TextPart(fullAnswer)}, Timestamp: now},
		)
		// 即使原始请求已取消，也要保存成功生成的答案，因此不复用 ctx
		if err := s.chatRepo.Save(&model.Chat{ID: chatID, UserID: user.ID, Messages: history}); err != nil {
			// 只记录错误，不返回给客户端，流式响应已经成功
			log.Errorf("[ChatService] 保存对话失败, chatID: %s, error: %v", chatID, err)
		}
	}

	return chatID, nil
}

// ReplayMessage 通过渲染器重放一条已存储的助手消息：
// 未播放过则逐字动画，播放过则立即完整显示。
func (s *chatService) ReplayMessage(ctx context.Context, chatID, messageID string, userID uint, w reveal.FrameWriter) (*reveal.Animation, error) {
	chat, err := s.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	for _, m := range chat.Messages {
		if m.ID == messageID && m.Role == "assistant" {
			return s.renderer.Reveal(ctx, reveal.Message{
				ChatID:    chatID,
				MessageID: messageID,
				Text:      m.Text(),
			}, w)
		}
	}
	return nil, ErrNotFound
}

// composeLLMMessages 把历史与本轮输入转换为模型请求消息。
func composeLLMMessages(history model.MessageList, input string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Content: text})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: input})
	return msgs
}

// streamInterceptor 把模型增量累积为全文，经渲染器的流式直通路径下发。
type streamInterceptor struct {
	ctx        context.Context
	renderer   *reveal.Renderer
	frames     reveal.FrameWriter
	shouldStop func() bool
	chatID     string
	messageID  string
	builder    strings.Builder
}

// WriteDelta 满足 llm.DeltaWriter 接口。
func (i *streamInterceptor) WriteDelta(delta string) error {
	if i.shouldStop != nil && i.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	i.builder.WriteString(delta)
	_, err := i.renderer.Reveal(i.ctx, reveal.Message{
		ChatID:    i.chatID,
		MessageID: i.messageID,
		Text:      i.builder.String(),
		Streaming: true,
	}, i.frames)
	return err
}
