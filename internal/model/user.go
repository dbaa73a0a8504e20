// Package model 包含了应用的数据模型定义。
package model

import "time"

// User 定义了 user 表的 ORM 模型。
// ResetToken 与 ResetTokenExpiry 要么同时为 NULL，要么同时有值，
// 二者永远在同一条 UPDATE 中一起写入。
type User struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"email"`
	Password         string     `gorm:"type:varchar(64);not null" json:"-"`
	ResetToken       *string    `gorm:"type:varchar(64);index" json:"-"`
	ResetTokenExpiry *time.Time `gorm:"default:null" json:"-"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "user"
}

// HasOutstandingReset 判断该用户当前是否存在未消费的重置令牌。
func (u *User) HasOutstandingReset() bool {
	return u.ResetToken != nil && u.ResetTokenExpiry != nil
}
