package access

import (
	"time"

	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/model"
)

// Gate 对解析出的链接执行访问策略：停用 > 过期 > 密码
type Gate struct {
	now func() time.Time
}

// NewGate 创建访问控制器，now 为空时使用系统时间
func NewGate(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now}
}

// Authorize 校验通过时原样返回目标地址。password 为 nil 表示调用方没有提供密码
func (g *Gate) Authorize(link *model.ShortLink, password *string) (string, error) {
	if !link.IsActive {
		return "", apperrors.ErrDeactivated
	}
	if link.IsExpired(g.now()) {
		return "", apperrors.ErrExpired
	}
	if link.IsPasswordProtected() {
		if password == nil || *password == "" {
			return "", apperrors.ErrPasswordRequired
		}
		if !link.CheckPassword(*password) {
			return "", apperrors.ErrPasswordIncorrect
		}
	}
	return link.OriginalURL, nil
}
