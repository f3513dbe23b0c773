package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"sync/atomic"
	"time"

	"shortlink-core/internal/model"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultShards      = 16
	DefaultLocalTTL    = 10 * time.Minute
	defaultLoadTimeout = 3 * time.Second
)

// Loader 缓存未命中时的持久化数据源
type Loader interface {
	FindByCode(ctx context.Context, code string) (*model.ShortLink, error)
}

// Options 解析缓存配置
type Options struct {
	Shards      int
	LocalTTL    time.Duration
	LoadTimeout time.Duration
	Remote      Remote
}

// Stats 命中统计
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

type shard struct {
	items *gocache.Cache
	// 每次失效加一，加载期间发生过失效的结果不写回缓存
	gen atomic.Uint64
}

// ResolutionCache 位于跳转路径和存储之间的读穿透缓存。
// 写操作只负责失效，下一次读取时再懒加载。
type ResolutionCache struct {
	loader      Loader
	remote      Remote
	shards      []*shard
	group       singleflight.Group
	loadTimeout time.Duration
	logger      *zap.SugaredLogger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResolutionCache 创建解析缓存
func NewResolutionCache(loader Loader, opts Options, logger *zap.SugaredLogger) *ResolutionCache {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = DefaultLocalTTL
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.Remote == nil {
		opts.Remote = NullRemote{}
	}

	c := &ResolutionCache{
		loader:      loader,
		remote:      opts.Remote,
		shards:      make([]*shard, opts.Shards),
		loadTimeout: opts.LoadTimeout,
		logger:      logger.Named("resolution_cache"),
	}
	for i := range c.shards {
		c.shards[i] = &shard{items: gocache.New(opts.LocalTTL, opts.LocalTTL/2)}
	}
	return c
}

func (c *ResolutionCache) shardFor(code string) *shard {
	h := fnv.New32a()
	h.Write([]byte(code))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Resolve 先查本地缓存，未命中时依次查询 Redis 和存储，并发的未命中只会触发一次加载
func (c *ResolutionCache) Resolve(ctx context.Context, code string) (*model.ShortLink, error) {
	sh := c.shardFor(code)
	if v, ok := sh.items.Get(code); ok {
		c.hits.Add(1)
		return clone(v.(*model.ShortLink)), nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(code, func() (interface{}, error) {
		gen := sh.gen.Load()

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		link, fromRemote, err := c.load(loadCtx, code)
		if err != nil {
			return nil, err
		}

		if sh.gen.Load() == gen {
			if !fromRemote {
				if err := c.remote.Set(loadCtx, link); err != nil {
					c.logger.Warnf("写入 Redis 缓存失败: %v", err)
				}
			}
			sh.items.Set(code, link, gocache.DefaultExpiration)
			// 写完两级缓存后再检查一次，和 Invalidate 的 "先加代数再删除" 配合：
			// 期间发生过失效就把刚写入的旧值从两级缓存里都删掉
			if sh.gen.Load() != gen {
				sh.items.Delete(code)
				if !fromRemote {
					if err := c.remote.Delete(loadCtx, code); err != nil {
						c.logger.Errorf("删除 Redis 缓存失败: %v", err)
					}
				}
			}
		}
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.(*model.ShortLink)), nil
}

// load 返回的 fromRemote 表示结果来自 Redis，不需要回写
func (c *ResolutionCache) load(ctx context.Context, code string) (*model.ShortLink, bool, error) {
	link, err := c.remote.Get(ctx, code)
	if err == nil {
		return link, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warnf("读取 Redis 缓存失败，回退到数据库: %v", err)
	}

	link, err = c.loader.FindByCode(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return link, false, nil
}

// Invalidate 同步删除短码在两级缓存中的记录，并丢弃正在进行的加载。
// 开启 Redis 时同时广播失效通知，其他实例通过 Listen 丢弃各自的本地副本
func (c *ResolutionCache) Invalidate(ctx context.Context, code string) error {
	c.dropLocal(code)

	if err := c.remote.Delete(ctx, code); err != nil {
		c.logger.Errorf("删除 Redis 缓存失败: %v", err)
		return err
	}
	return nil
}

// Listen 订阅其他实例的失效通知，阻塞到 ctx 结束。未配置 Redis 时立即返回
func (c *ResolutionCache) Listen(ctx context.Context) error {
	return c.remote.Subscribe(ctx, c.dropLocal)
}

func (c *ResolutionCache) dropLocal(code string) {
	sh := c.shardFor(code)
	sh.gen.Add(1)
	sh.items.Delete(code)
	c.group.Forget(code)
}

// Stats 返回命中统计和当前本地条目数
func (c *ResolutionCache) Stats() Stats {
	entries := 0
	for _, sh := range c.shards {
		entries += sh.items.ItemCount()
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: entries}
}

// HealthCheck 检查二级缓存
func (c *ResolutionCache) HealthCheck(ctx context.Context) error {
	return c.remote.HealthCheck(ctx)
}

// clone 返回副本，调用方修改返回值不会影响缓存中的对象
func clone(link *model.ShortLink) *model.ShortLink {
	cp := *link
	if link.ExpiresAt != nil {
		t := *link.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
