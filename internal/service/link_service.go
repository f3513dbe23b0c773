package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"shortlink-core/internal/access"
	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/model"

	"go.uber.org/zap"
)

// RoleAdmin 管理员可以操作任何人的链接
const RoleAdmin = "admin"

// LinkStore 链接的持久化存储
type LinkStore interface {
	FindByCode(ctx context.Context, code string) (*model.ShortLink, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, link *model.ShortLink) error
	Update(ctx context.Context, link *model.ShortLink) error
	Delete(ctx context.Context, code string) error
	IncrementClicks(ctx context.Context, code string) error
}

// VisitStore 访问事件存储
type VisitStore interface {
	Append(ctx context.Context, event *model.VisitEvent) error
	Summary(ctx context.Context, link *model.ShortLink) (*model.VisitSummary, error)
}

// Resolver 跳转路径上的读缓存
type Resolver interface {
	Resolve(ctx context.Context, code string) (*model.ShortLink, error)
	Invalidate(ctx context.Context, code string) error
}

// CodeAllocator 短码分配
type CodeAllocator interface {
	Allocate(ctx context.Context, alias string) (string, error)
	MaxAttempts() int
}

// Actor 发起操作的用户
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CreateInput 创建短链接的参数
type CreateInput struct {
	URL       string
	Alias     string
	Password  string
	ExpiresAt *time.Time
}

// UpdateInput 修改短链接的参数，nil 表示不修改
type UpdateInput struct {
	URL         *string
	Password    *string // 空串表示取消密码
	ExpiresAt   *time.Time
	ClearExpiry bool
	IsActive    *bool
	ImageRef    *string // 外部生成的图片引用，空串表示清除
}

// LinkService 短链接的业务入口：创建、修改、解析和统计
type LinkService struct {
	links         LinkStore
	visits        VisitStore
	cache         Resolver
	allocator     CodeAllocator
	gate          *access.Gate
	defaultExpiry time.Duration
	now           func() time.Time
	logger        *zap.SugaredLogger
}

// Options 服务配置
type Options struct {
	DefaultExpiry time.Duration // 0 表示新链接默认不过期
	Now           func() time.Time
}

func NewLinkService(links LinkStore, visits VisitStore, cache Resolver, allocator CodeAllocator, opts Options, logger *zap.SugaredLogger) *LinkService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LinkService{
		links:         links,
		visits:        visits,
		cache:         cache,
		allocator:     allocator,
		gate:          access.NewGate(opts.Now),
		defaultExpiry: opts.DefaultExpiry,
		now:           opts.Now,
		logger:        logger.Named("link_service"),
	}
}

// Create 为 owner 创建一个短链接。生成的短码在插入时撞上唯一索引会重新分配
func (s *LinkService) Create(ctx context.Context, owner Actor, in CreateInput) (*model.ShortLink, error) {
	target, err := normalizeURL(in.URL)
	if err != nil {
		return nil, err
	}

	link := &model.ShortLink{
		OriginalURL: target,
		CustomAlias: in.Alias != "",
		OwnerID:     owner.UserID,
		IsActive:    true,
		ExpiresAt:   in.ExpiresAt,
	}
	if link.ExpiresAt == nil && s.defaultExpiry > 0 {
		expires := s.now().Add(s.defaultExpiry)
		link.ExpiresAt = &expires
	}
	if in.Password != "" {
		if err := link.SetPassword(in.Password); err != nil {
			return nil, fmt.Errorf("生成密码哈希失败: %w", err)
		}
	}

	for attempt := 1; attempt <= s.allocator.MaxAttempts(); attempt++ {
		code, err := s.allocator.Allocate(ctx, in.Alias)
		if err != nil {
			return nil, err
		}
		link.ID = 0
		link.ShortCode = code

		err = s.links.Create(ctx, link)
		if err == nil {
			s.logger.Infof("用户 %d 创建短链接 %s -> %s", owner.UserID, code, target)
			return link, nil
		}
		if !errors.Is(err, apperrors.ErrCodeConflict) {
			return nil, err
		}
		if link.CustomAlias {
			return nil, apperrors.ErrAliasTaken
		}
		s.logger.Warnf("短码 %s 插入时冲突，重新分配 (第 %d 次)", code, attempt)
	}
	return nil, apperrors.ErrCodeSpaceExhausted
}

// Update 修改链接，返回之前同步失效缓存
func (s *LinkService) Update(ctx context.Context, actor Actor, code string, in UpdateInput) (*model.ShortLink, error) {
	link, err := s.ownedLink(ctx, actor, code)
	if err != nil {
		return nil, err
	}

	if in.URL != nil {
		target, err := normalizeURL(*in.URL)
		if err != nil {
			return nil, err
		}
		link.OriginalURL = target
	}
	if in.Password != nil {
		if *in.Password == "" {
			link.ClearPassword()
		} else if err := link.SetPassword(*in.Password); err != nil {
			return nil, fmt.Errorf("生成密码哈希失败: %w", err)
		}
	}
	switch {
	case in.ClearExpiry:
		link.ExpiresAt = nil
	case in.ExpiresAt != nil:
		link.ExpiresAt = in.ExpiresAt
	}
	if in.IsActive != nil {
		link.IsActive = *in.IsActive
	}
	if in.ImageRef != nil {
		link.ImageRef = *in.ImageRef
	}

	if err := s.links.Update(ctx, link); err != nil {
		return nil, err
	}
	s.invalidate(ctx, code)
	return link, nil
}

// Delete 软删除链接，短码不会被再次分配
func (s *LinkService) Delete(ctx context.Context, actor Actor, code string) error {
	if _, err := s.ownedLink(ctx, actor, code); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	s.logger.Infof("用户 %d 删除短链接 %s", actor.UserID, code)
	return nil
}

// Resolve 解析短码并执行访问控制，成功时返回链接和跳转目标
func (s *LinkService) Resolve(ctx context.Context, code string, password *string) (*model.ShortLink, string, error) {
	link, err := s.cache.Resolve(ctx, code)
	if err != nil {
		return nil, "", err
	}
	target, err := s.gate.Authorize(link, password)
	if err != nil {
		return link, "", err
	}
	return link, target, nil
}

// Preview 只解析不做访问控制，也不记录访问
func (s *LinkService) Preview(ctx context.Context, code string) (*model.ShortLink, error) {
	return s.cache.Resolve(ctx, code)
}

// Status 返回链接当前会被访问控制拒绝的原因，可访问时返回 nil
func (s *LinkService) Status(link *model.ShortLink) error {
	empty := ""
	_, err := s.gate.Authorize(link, &empty)
	if errors.Is(err, apperrors.ErrPasswordRequired) {
		return nil
	}
	return err
}

// Summary 汇总链接的访问数据，只有所有者或管理员可以查看
func (s *LinkService) Summary(ctx context.Context, actor Actor, code string) (*model.VisitSummary, error) {
	link, err := s.ownedLink(ctx, actor, code)
	if err != nil {
		return nil, err
	}
	summary, err := s.visits.Summary(ctx, link)
	if err != nil {
		return nil, err
	}
	summary.ClickCount = link.ClickCount
	return summary, nil
}

// ownedLink 从存储读取链接并校验所有权
func (s *LinkService) ownedLink(ctx context.Context, actor Actor, code string) (*model.ShortLink, error) {
	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && link.OwnerID != actor.UserID {
		return nil, apperrors.ErrForbidden
	}
	return link, nil
}

// invalidate 存储已经提交，Redis 删除失败只记录日志，本地缓存总是会被清除
func (s *LinkService) invalidate(ctx context.Context, code string) {
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.logger.Errorf("失效短码 %s 的缓存失败: %v", code, err)
	}
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperrors.ErrInvalidURL
	}
	return raw, nil
}
