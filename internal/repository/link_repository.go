package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/model"

	"gorm.io/gorm"
)

// LinkRepository 短链接的持久化，基于 gorm
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository 创建短链接仓储
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindByCode 按短码查询未删除的链接
func (r *LinkRepository) FindByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	var link model.ShortLink
	err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询短码 %s 失败: %w", code, err)
	}
	return &link, nil
}

// ExistsByCode 检查短码是否被占用。使用 Unscoped 把软删除的记录也算进去，短码一旦分配永不复用
func (r *LinkRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.ShortLink{}).
		Where("short_code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询短码 %s 失败: %w", code, err)
	}
	return count > 0, nil
}

// Create 插入新链接，短码冲突时返回 ErrCodeConflict，不会覆盖已有记录
func (r *LinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	err := r.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrCodeConflict
	}
	if err != nil {
		return apperrors.NewBusinessError("DATABASE_ERROR", "failed to create short link", err)
	}
	return nil
}

// mutableColumns 所有者可以修改的列。点击数只通过 IncrementClicks 修改，避免覆盖并发的计数
var mutableColumns = []string{"original_url", "is_active", "expires_at", "password_hash", "image_ref", "updated_at"}

// Update 保存链接的可修改字段，零值同样写入
func (r *LinkRepository) Update(ctx context.Context, link *model.ShortLink) error {
	result := r.db.WithContext(ctx).Model(link).Select(mutableColumns).Updates(link)
	if result.Error != nil {
		return apperrors.NewBusinessError("DATABASE_ERROR", "failed to update short link", result.Error)
	}
	return nil
}

// Delete 软删除链接
func (r *LinkRepository) Delete(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).Where("short_code = ?", code).Delete(&model.ShortLink{})
	if result.Error != nil {
		return apperrors.NewBusinessError("DATABASE_ERROR", "failed to delete short link", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// IncrementClicks 原子地把访问计数加一
func (r *LinkRepository) IncrementClicks(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).Model(&model.ShortLink{}).
		Where("short_code = ?", code).
		UpdateColumn("click_count", gorm.Expr("click_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("更新点击数失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Ping 检查数据库连通性
func (r *LinkRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
