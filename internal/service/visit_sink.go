package service

import (
	"context"
	"fmt"

	"shortlink-core/internal/model"

	"go.uber.org/zap"
)

// VisitSink 点击记录器在生产环境中的落地方式：追加事件、计数加一、失效缓存
type VisitSink struct {
	visits VisitStore
	links  LinkStore
	cache  Resolver
	logger *zap.SugaredLogger
}

func NewVisitSink(visits VisitStore, links LinkStore, cache Resolver, logger *zap.SugaredLogger) *VisitSink {
	return &VisitSink{visits: visits, links: links, cache: cache, logger: logger.Named("visit_sink")}
}

func (s *VisitSink) Append(ctx context.Context, event *model.VisitEvent) error {
	if err := s.visits.Append(ctx, event); err != nil {
		return err
	}
	if err := s.links.IncrementClicks(ctx, event.ShortCode); err != nil {
		return fmt.Errorf("更新短码 %s 的点击数失败: %w", event.ShortCode, err)
	}
	// 事件和计数已经提交，缓存失效失败只记日志，本地副本已被清掉
	if err := s.cache.Invalidate(ctx, event.ShortCode); err != nil {
		s.logger.Warnf("点击后失效缓存 %s 失败: %v", event.ShortCode, err)
	}
	return nil
}
