package repository

import (
	"context"
	"fmt"

	"shortlink-core/internal/model"

	"gorm.io/gorm"
)

const topN = 10

// VisitRepository 访问事件仓储，只追加不修改
type VisitRepository struct {
	db *gorm.DB
}

func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// Append 写入一条访问事件
func (r *VisitRepository) Append(ctx context.Context, event *model.VisitEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("写入访问事件失败: %w", err)
	}
	return nil
}

// Summary 汇总某个链接的访问数据
func (r *VisitRepository) Summary(ctx context.Context, link *model.ShortLink) (*model.VisitSummary, error) {
	summary := &model.VisitSummary{ShortCode: link.ShortCode}
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.VisitEvent{}).Where("short_link_id = ?", link.ID)
	}

	if err := base().Count(&summary.TotalVisits).Error; err != nil {
		return nil, fmt.Errorf("统计访问总数失败: %w", err)
	}
	if err := base().Distinct("ip_address").Count(&summary.UniqueVisitors).Error; err != nil {
		return nil, fmt.Errorf("统计独立访客失败: %w", err)
	}
	if err := base().Where("is_bot = ?", true).Count(&summary.BotVisits).Error; err != nil {
		return nil, fmt.Errorf("统计机器人访问失败: %w", err)
	}

	groups := []struct {
		column string
		dest   *[]model.CountBucket
	}{
		{"country", &summary.TopCountries},
		{"browser", &summary.TopBrowsers},
		{"device_type", &summary.DeviceTypes},
		{"referer", &summary.TopReferers},
	}
	for _, g := range groups {
		err := base().
			Select(g.column + " AS name, COUNT(*) AS count").
			Group(g.column).
			Order("count DESC").
			Limit(topN).
			Scan(g.dest).Error
		if err != nil {
			return nil, fmt.Errorf("按 %s 分组统计失败: %w", g.column, err)
		}
	}

	return summary, nil
}
