// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RevealRecordRepository 记录哪些助手消息已经完整播放过逐字动画。
// 记录按 (chatID, messageID) 键入，一经写入永不过期，读写均为
// last-writer-wins（同一消息实际上只会被一个实例播放）。
type RevealRecordRepository interface {
	IsAnimated(ctx context.Context, chatID, messageID string) (bool, error)
	MarkAnimated(ctx context.Context, chatID, messageID string) error
}

type redisRevealRecordRepository struct {
	redisClient *redis.Client
}

// NewRevealRecordRepository 创建一个新的 RevealRecordRepository 实例。
func NewRevealRecordRepository(redisClient *redis.Client) RevealRecordRepository {
	return &redisRevealRecordRepository{redisClient: redisClient}
}

// 每个 chat 一个 hash，field 为 messageID，与按 chat 命名空间隔离的要求对应。
func revealKey(chatID string) string {
	return fmt.Sprintf("reveal:animated:%s", chatID)
}

// IsAnimated 查询某条消息是否已播放过动画。
func (r *redisRevealRecordRepository) IsAnimated(ctx context.Context, chatID, messageID string) (bool, error) {
	ok, err := r.redisClient.HExists(ctx, revealKey(chatID), messageID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query reveal record: %w", err)
	}
	return ok, nil
}

// MarkAnimated 标记某条消息已完成动画。不设置过期时间。
func (r *redisRevealRecordRepository) MarkAnimated(ctx context.Context, chatID, messageID string) error {
	if err := r.redisClient.HSet(ctx, revealKey(chatID), messageID, "1").Err(); err != nil {
		return fmt.Errorf("failed to write reveal record: %w", err)
	}
	return nil
}

// MemoryRevealRecordRepository 是 RevealRecordRepository 的内存实现，
// 用于测试中替换 Redis。
type MemoryRevealRecordRepository struct {
	mu      sync.Mutex
	records map[string]struct{}
}

// NewMemoryRevealRecordRepository 创建一个空的内存实现。
func NewMemoryRevealRecordRepository() *MemoryRevealRecordRepository {
	return &MemoryRevealRecordRepository{records: make(map[string]struct{})}
}

// IsAnimated 查询内存中的动画记录。
func (m *MemoryRevealRecordRepository) IsAnimated(_ context.Context, chatID, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[chatID+"/"+messageID]
	return ok, nil
}

// MarkAnimated 在内存中写入动画记录。
func (m *MemoryRevealRecordRepository) MarkAnimated(_ context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[chatID+"/"+messageID] = struct{}{}
	return nil
}
