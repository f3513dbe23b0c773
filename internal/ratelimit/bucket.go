package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket 单个客户端在某个策略下的令牌状态
type bucket struct {
	mu       sync.Mutex
	limiters []*rate.Limiter
}

func newBucket(p Policy) *bucket {
	b := &bucket{limiters: make([]*rate.Limiter, 0, len(p.Bandwidths))}
	for _, bw := range p.Bandwidths {
		every := rate.Limit(float64(bw.Capacity) / bw.Period.Seconds())
		b.limiters = append(b.limiters, rate.NewLimiter(every, bw.Capacity))
	}
	return b
}

// tryAcquire 所有窗口都至少有一个令牌时同时各扣一个；否则不扣并返回需要等待的时间
func (b *bucket) tryAcquire(now time.Time) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		wait   time.Duration
		denied bool
	)
	for _, lim := range b.limiters {
		tokens := lim.TokensAt(now)
		if tokens >= 1 {
			continue
		}
		denied = true
		need := time.Duration((1 - tokens) / float64(lim.Limit()) * float64(time.Second)).Round(time.Millisecond)
		if need > wait {
			wait = need
		}
	}
	if denied {
		return Decision{Allowed: false, RetryAfter: wait}
	}

	remaining := math.MaxInt
	for _, lim := range b.limiters {
		lim.AllowN(now, 1)
		if left := int(math.Floor(lim.TokensAt(now))); left < remaining {
			remaining = left
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}
