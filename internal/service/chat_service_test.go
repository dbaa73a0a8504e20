package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"sorvx-chat-go/internal/model"
	"sorvx-chat-go/internal/repository"
	"sorvx-chat-go/internal/reveal"
	"sorvx-chat-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeChatRepository 是 ChatRepository 的内存实现。
type fakeChatRepository struct {
	chats map[string]*model.Chat
}

func newFakeChatRepository() *fakeChatRepository {
	return &fakeChatRepository{chats: make(map[string]*model.Chat)}
}

func (f *fakeChatRepository) Save(chat *model.Chat) error {
	if existing, ok := f.chats[chat.ID]; ok {
		existing.Messages = chat.Messages
		return nil
	}
	c := *chat
	c.CreatedAt = time.Now()
	f.chats[c.ID] = &c
	return nil
}

func (f *fakeChatRepository) FindByID(id string) (*model.Chat, error) {
	chat, ok := f.chats[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *chat
	return &c, nil
}

func (f *fakeChatRepository) FindByUserID(userID uint) ([]model.Chat, error) {
	var out []model.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChatRepository) DeleteByID(id string) error {
	delete(f.chats, id)
	return nil
}

// scriptedLLM 按脚本返回流式增量。
type scriptedLLM struct {
	deltas []string
}

func (s *scriptedLLM) StreamChat(_ context.Context, _ []llm.Message, writer llm.DeltaWriter) error {
	for _, d := range s.deltas {
		if err := writer.WriteDelta(d); err != nil {
			return err
		}
	}
	return nil
}

// frameCollector 收集渲染器写出的帧。
type frameCollector struct {
	mu     sync.Mutex
	frames []reveal.Frame
}

func (c *frameCollector) WriteFrame(frame reveal.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *frameCollector) all() []reveal.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reveal.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func newTestChatService(chatRepo repository.ChatRepository, client llm.Client) ChatService {
	renderer := reveal.NewRenderer(repository.NewMemoryRevealRecordRepository(), time.Millisecond, 0)
	return NewChatService(chatRepo, client, renderer)
}

func userMessages(texts ...string) model.MessageList {
	var msgs model.MessageList
	for i, text := range texts {
		msgs = append(msgs, model.ChatMessage{
			ID:        string(rune('a' + i)),
			Role:      "user",
			Parts:     []model.MessagePart{model.TextPart(text)},
			Timestamp: time.Now(),
		})
	}
	return msgs
}

func TestSaveChat_GeneratesIDWhenMissing(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})

	chat, err := svc.SaveChat(context.Background(), "", 1, userMessages("hello"))

	require.NoError(t, err)
	require.NotEmpty(t, chat.ID)
	assert.Equal(t, uint(1), chat.UserID)
	require.Len(t, chat.Messages, 1)
}

func TestSaveChat_OverwritePreservesCreatedAt(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})

	first, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("v1"))
	require.NoError(t, err)
	created := first.CreatedAt

	second, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("v1", "v2"))
	require.NoError(t, err)

	assert.Equal(t, created, second.CreatedAt, "覆盖保存不应改变创建时间")
	require.Len(t, second.Messages, 2)
	assert.Equal(t, "v2", second.Messages[1].Text())
}

func TestSaveChat_RejectsForeignChat(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})

	_, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("mine"))
	require.NoError(t, err)

	_, err = svc.SaveChat(context.Background(), "chat-1", 2, userMessages("theirs"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	chat, err := repo.FindByID("chat-1")
	require.NoError(t, err)
	assert.Equal(t, "mine", chat.Messages[0].Text(), "越权保存不应修改对话")
}

func TestGetChat_Errors(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})

	_, err := svc.GetChat(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SaveChat(context.Background(), "chat-1", 1, userMessages("hi"))
	require.NoError(t, err)

	_, err = svc.GetChat(context.Background(), "chat-1", 2)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeleteChat_NonOwnerLeavesRowIntact(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})

	_, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("hi"))
	require.NoError(t, err)

	err = svc.DeleteChat(context.Background(), "chat-1", 2)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = repo.FindByID("chat-1")
	require.NoError(t, err, "越权删除后对话行必须保持不变")

	require.NoError(t, svc.DeleteChat(context.Background(), "chat-1", 1))
	_, err = repo.FindByID("chat-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStreamTurn_StreamsAndPersists(t *testing.T) {
	repo := newFakeChatRepository()
	client := &scriptedLLM{deltas: []string{"你好", "，", "世界"}}
	svc := newTestChatService(repo, client)
	collector := &frameCollector{}
	user := &model.User{ID: 1, Email: "alice@example.com"}

	chatID, err := svc.StreamTurn(context.Background(), "", user, "打个招呼", collector, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chatID)

	frames := collector.all()
	// 每个增量一帧直通 + 一个完成帧
	require.Len(t, frames, 4)
	assert.Equal(t, "你好", frames[0].Text)
	assert.Equal(t, "你好，", frames[1].Text)
	assert.Equal(t, "你好，世界", frames[2].Text)
	assert.False(t, frames[0].Done)
	assert.True(t, frames[3].Done)
	assert.Equal(t, "你好，世界", frames[3].Text)

	chat, err := repo.FindByID(chatID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "user", chat.Messages[0].Role)
	assert.Equal(t, "打个招呼", chat.Messages[0].Text())
	assert.Equal(t, "assistant", chat.Messages[1].Role)
	assert.Equal(t, "你好，世界", chat.Messages[1].Text())
}

func TestStreamTurn_StopSkipsRemainingDeltas(t *testing.T) {
	repo := newFakeChatRepository()
	client := &scriptedLLM{deltas: []string{"part1 ", "part2 ", "part3"}}
	svc := newTestChatService(repo, client)
	collector := &frameCollector{}
	user := &model.User{ID: 1}

	delivered := 0
	shouldStop := func() bool {
		delivered++
		return delivered > 2
	}

	chatID, err := svc.StreamTurn(context.Background(), "", user, "go", collector, shouldStop)
	require.NoError(t, err)

	chat, err := repo.FindByID(chatID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "part1 part2 ", chat.Messages[1].Text(), "停止后到达的增量被丢弃")
}

func TestStreamTurn_AppendsToHistory(t *testing.T) {
	repo := newFakeChatRepository()
	client := &scriptedLLM{deltas: []string{"answer2"}}
	svc := newTestChatService(repo, client)
	user := &model.User{ID: 1}

	_, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("question1"))
	require.NoError(t, err)

	_, err = svc.StreamTurn(context.Background(), "chat-1", user, "question2", &frameCollector{}, nil)
	require.NoError(t, err)

	chat, err := repo.FindByID("chat-1")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 3)
	assert.Equal(t, "question2", chat.Messages[1].Text())
	assert.Equal(t, "answer2", chat.Messages[2].Text())
}

func TestStreamTurn_ForeignChatRejected(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{deltas: []string{"x"}})

	_, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("hi"))
	require.NoError(t, err)

	_, err = svc.StreamTurn(context.Background(), "chat-1", &model.User{ID: 2}, "steal", &frameCollector{}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReplayMessage_AnimatesStoredMessage(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})
	collector := &frameCollector{}

	msgs := model.MessageList{
		{ID: "m1", Role: "user", Parts: []model.MessagePart{model.TextPart("hi")}},
		{ID: "m2", Role: "assistant", Parts: []model.MessagePart{model.TextPart("hey")}},
	}
	_, err := svc.SaveChat(context.Background(), "chat-1", 1, msgs)
	require.NoError(t, err)

	anim, err := svc.ReplayMessage(context.Background(), "chat-1", "m2", 1, collector)
	require.NoError(t, err)

	select {
	case <-anim.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("动画未在预期时间内完成")
	}

	frames := collector.all()
	require.NotEmpty(t, frames)
	assert.Equal(t, "", frames[0].Text, "首帧从空串开始")
	last := frames[len(frames)-1]
	assert.Equal(t, "hey", last.Text)
	assert.True(t, last.Done)

	// 第二次重放：已有动画记录，立即完整显示
	second := &frameCollector{}
	anim, err = svc.ReplayMessage(context.Background(), "chat-1", "m2", 1, second)
	require.NoError(t, err)
	<-anim.Done()
	require.Len(t, second.all(), 1)
	assert.Equal(t, "hey", second.all()[0].Text)
	assert.True(t, second.all()[0].Done)
}

func TestReplayMessage_UnknownMessage(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo, &scriptedLLM{})

	_, err := svc.SaveChat(context.Background(), "chat-1", 1, userMessages("hi"))
	require.NoError(t, err)

	_, err = svc.ReplayMessage(context.Background(), "chat-1", "nope", 1, &frameCollector{})
	assert.ErrorIs(t, err, ErrNotFound)
}
