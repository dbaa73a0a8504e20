// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"time"

	"sorvx-chat-go/internal/model"

	"gorm.io/gorm"
)

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	Create(user *model.User) error
	Update(user *model.User) error
	FindByEmail(email string) (*model.User, error)
	FindByID(userID uint) (*model.User, error)
	FindByResetToken(token string) (*model.User, error)
	SetResetToken(userID uint, resetToken string, expiry time.Time) error
	ConsumeResetToken(resetToken, passwordHash string) (bool, error)
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 在数据库中创建一个新的用户记录。
func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// Update 更新数据库中一个已存在的用户记录。
func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// FindByEmail 根据邮箱从数据库中查找一个用户。
func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID 根据用户 ID 从数据库中查找一个用户。
func (r *userRepository) FindByID(userID uint) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByResetToken 根据重置令牌精确匹配查找用户。
func (r *userRepository) FindByResetToken(token string) (*model.User, error) {
	var user model.User
	err := r.db.Where("reset_token = ?", token).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetResetToken 在用户行上写入新的重置令牌与过期时间。
// 两列始终在同一条 UPDATE 中一起写入，旧令牌（若有）被直接覆盖。
func (r *userRepository) SetResetToken(userID uint, resetToken string, expiry time.Time) error {
	return r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"reset_token":        resetToken,
			"reset_token_expiry": expiry,
		}).Error
}

// ConsumeResetToken 以单条条件 UPDATE 完成"校验并清除"：
// 仅当 reset_token 仍然等于给定值时才写入新密码并把令牌对清为 NULL。
// 返回 false 表示令牌已被并发消费或替换（RowsAffected == 0）。
func (r *userRepository) ConsumeResetToken(resetToken, passwordHash string) (bool, error) {
	res := r.db.Model(&model.User{}).
		Where("reset_token = ?", resetToken).
		Updates(map[string]interface{}{
			"password":           passwordHash,
			"reset_token":        nil,
			"reset_token_expiry": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
