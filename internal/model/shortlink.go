package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ShortLink 短链接模型
type ShortLink struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	ShortCode    string         `gorm:"size:20;uniqueIndex;not null" json:"short_code"`
	OriginalURL  string         `gorm:"type:text;not null" json:"original_url"`
	CustomAlias  bool           `gorm:"default:false" json:"custom_alias"`
	OwnerID      uint           `gorm:"index" json:"owner_id"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	PasswordHash string         `gorm:"size:255" json:"password_hash,omitempty"` // bcrypt 哈希，空串表示无密码
	ClickCount   int64          `gorm:"default:0" json:"click_count"`
	ImageRef     string         `gorm:"size:255" json:"image_ref,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (ShortLink) TableName() string {
	return "short_links"
}

// IsExpired 过期是按当前时间计算出来的属性，不是状态
func (l *ShortLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// IsPasswordProtected 是否需要密码访问
func (l *ShortLink) IsPasswordProtected() bool {
	return l.PasswordHash != ""
}

// SetPassword 加密并设置访问密码
func (l *ShortLink) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	l.PasswordHash = string(hash)
	return nil
}

// ClearPassword 移除访问密码
func (l *ShortLink) ClearPassword() {
	l.PasswordHash = ""
}

// CheckPassword 校验访问密码
func (l *ShortLink) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(password))
	return err == nil
}
