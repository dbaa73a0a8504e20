// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"

	"sorvx-chat-go/internal/model"

	"gorm.io/gorm"
)

// ChatRepository 接口定义了对话数据的持久化操作。
// 该层不做归属校验，调用方必须先确认会话用户与 chat.UserID 一致。
type ChatRepository interface {
	Save(chat *model.Chat) error
	FindByID(id string) (*model.Chat, error)
	FindByUserID(userID uint) ([]model.Chat, error)
	DeleteByID(id string) error
}

// chatRepository 是 ChatRepository 接口的 GORM 实现。
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Save 保存一个对话：已存在则整体覆盖 messages 字段（createdAt 不变），
// 否则插入新行、createdAt 取当前时间。并发保存遵循 last-writer-wins。
func (r *chatRepository) Save(chat *model.Chat) error {
	var existing model.Chat
	err := r.db.Select("id").Where("id = ?", chat.ID).First(&existing).Error
	if err == nil {
		return r.db.Model(&model.Chat{}).
			Where("id = ?", chat.ID).
			Update("messages", chat.Messages).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(chat).Error
}

// FindByID 根据 ID 查找一个对话。
func (r *chatRepository) FindByID(id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.Where("id = ?", id).First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindByUserID 返回某用户的全部对话，按创建时间倒序。
func (r *chatRepository) FindByUserID(userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&chats).Error
	return chats, err
}

// DeleteByID 根据 ID 删除一个对话。
func (r *chatRepository) DeleteByID(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Chat{}).Error
}
