package ratelimit

import (
	"hash/fnv"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultShards = 32

// Decision 一次准入判断的结果
type Decision struct {
	Allowed    bool
	Remaining  int           // 放行时各窗口中最少的剩余令牌数
	RetryAfter time.Duration // 拒绝时至少需要等待的时间
}

// RetryAfterSeconds 向上取整的重试秒数，最少 1 秒
func (d Decision) RetryAfterSeconds() int64 {
	secs := int64(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter 按客户端分桶的令牌桶限流器。桶按键分片存放，每个桶有自己的锁
type Limiter struct {
	policy Policy
	shards []*store
	idle   time.Duration
	now    func() time.Time
}

// store 一个分片。mu 只保护查找、创建和续期，扣令牌在桶自己的锁里进行
type store struct {
	mu    sync.Mutex
	items *gocache.Cache
}

// Option 限流器可选项
type Option func(*Limiter)

// WithClock 替换时间源，测试中使用
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter 创建限流器。空闲超过最长窗口的桶由 go-cache 后台清理，此时桶早已补满，清理不影响结果
func NewLimiter(policy Policy, opts ...Option) *Limiter {
	l := &Limiter{
		policy: policy,
		shards: make([]*store, defaultShards),
		idle:   policy.longestPeriod(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.idle <= 0 {
		l.idle = time.Minute
	}
	for i := range l.shards {
		l.shards[i] = &store{items: gocache.New(l.idle, l.idle)}
	}
	return l
}

// TryAcquire 为 key 尝试获取一个令牌
func (l *Limiter) TryAcquire(key string) Decision {
	return l.bucketFor(key).tryAcquire(l.now())
}

// Buckets 当前存活的桶数量
func (l *Limiter) Buckets() int {
	n := 0
	for _, s := range l.shards {
		n += s.items.ItemCount()
	}
	return n
}

// bucketFor 取出或创建 key 的桶，并在同一把锁内续期。
// 续期发生在扣令牌之前，所以正在使用的桶不会被后台清理掉
func (l *Limiter) bucketFor(key string) *bucket {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	var b *bucket
	if v, ok := s.items.Get(key); ok {
		b = v.(*bucket)
	} else {
		b = newBucket(l.policy)
	}
	s.items.Set(key, b, gocache.DefaultExpiration)
	return b
}

func (l *Limiter) shardFor(key string) *store {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}
