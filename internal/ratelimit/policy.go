package ratelimit

import (
	"fmt"
	"time"

	"shortlink-core/internal/config"
)

// Bandwidth 一个令牌桶窗口：Period 内最多 Capacity 次，令牌按 Capacity/Period 的速率连续补充
type Bandwidth struct {
	Capacity int
	Period   time.Duration
}

// Policy 同时生效的一组窗口，所有窗口都有令牌时才放行
type Policy struct {
	Name       string
	Bandwidths []Bandwidth
}

// 内置策略
var (
	GeneralPolicy = Policy{Name: "general", Bandwidths: []Bandwidth{
		{Capacity: 60, Period: time.Minute},
		{Capacity: 1000, Period: time.Hour},
	}}
	StrictPolicy   = Policy{Name: "strict", Bandwidths: []Bandwidth{{Capacity: 10, Period: time.Minute}}}
	RedirectPolicy = Policy{Name: "redirect", Bandwidths: []Bandwidth{{Capacity: 100, Period: 10 * time.Second}}}
)

// PolicyFromConfig 把配置转换为策略，配置为空时使用 fallback
func PolicyFromConfig(name string, cfg config.Policy, fallback Policy) (Policy, error) {
	if len(cfg.Bandwidths) == 0 {
		return fallback, nil
	}
	p := Policy{Name: name}
	for _, bw := range cfg.Bandwidths {
		if bw.Capacity <= 0 || bw.PeriodSeconds <= 0 {
			return Policy{}, fmt.Errorf("限流策略 %s 配置无效: capacity=%d period=%ds", name, bw.Capacity, bw.PeriodSeconds)
		}
		p.Bandwidths = append(p.Bandwidths, Bandwidth{
			Capacity: bw.Capacity,
			Period:   time.Duration(bw.PeriodSeconds) * time.Second,
		})
	}
	return p, nil
}

// longestPeriod 空闲超过该时长的桶一定已经补满，可以安全回收
func (p Policy) longestPeriod() time.Duration {
	var longest time.Duration
	for _, bw := range p.Bandwidths {
		if bw.Period > longest {
			longest = bw.Period
		}
	}
	return longest
}
