package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shortlink-core/internal/model"

	"github.com/redis/go-redis/v9"
)

// Remote 跨实例共享的二级缓存
type Remote interface {
	Get(ctx context.Context, code string) (*model.ShortLink, error)
	Set(ctx context.Context, link *model.ShortLink) error
	// Delete 删除共享记录并通知其他实例丢弃本地副本
	Delete(ctx context.Context, code string) error
	// Subscribe 接收其他实例的失效通知，阻塞到 ctx 结束
	Subscribe(ctx context.Context, onInvalidate func(code string)) error
	HealthCheck(ctx context.Context) error
}

var (
	_ Remote = (*RedisRemote)(nil)
	_ Remote = NullRemote{}
)

// RedisRemote 基于 Redis 的二级缓存，值为 JSON 编码的 ShortLink
type RedisRemote struct {
	client *redis.Client
	keys   *KeyBuilder
	ttl    time.Duration
}

func NewRedisRemote(client *redis.Client, namespace string, ttl time.Duration) *RedisRemote {
	return &RedisRemote{client: client, keys: NewKeyBuilder(namespace), ttl: ttl}
}

func (r *RedisRemote) Get(ctx context.Context, code string) (*model.ShortLink, error) {
	if code == "" {
		return nil, newError("get", code, ErrInvalidCacheKey)
	}
	key := r.keys.Link(code)
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, newError("get", key, err)
	}

	var link model.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, newError("get", key, fmt.Errorf("failed to unmarshal value: %w", err))
	}
	return &link, nil
}

func (r *RedisRemote) Set(ctx context.Context, link *model.ShortLink) error {
	key := r.keys.Link(link.ShortCode)
	data, err := json.Marshal(link)
	if err != nil {
		return newError("set", key, fmt.Errorf("failed to marshal value: %w", err))
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return newError("set", key, err)
	}
	return nil
}

func (r *RedisRemote) Delete(ctx context.Context, code string) error {
	key := r.keys.Link(code)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Publish(ctx, r.keys.Invalidations(), code)
		return nil
	})
	if err != nil {
		return newError("delete", key, err)
	}
	return nil
}

func (r *RedisRemote) Subscribe(ctx context.Context, onInvalidate func(code string)) error {
	channel := r.keys.Invalidations()
	sub := r.client.Subscribe(ctx, channel)
	defer sub.Close()

	// 等待订阅确认，连接失败时直接返回
	if _, err := sub.Receive(ctx); err != nil {
		return newError("subscribe", channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			onInvalidate(msg.Payload)
		}
	}
}

func (r *RedisRemote) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return newError("ping", "", err)
	}
	return nil
}

// NullRemote 未配置 Redis 时使用，始终未命中
type NullRemote struct{}

func (NullRemote) Get(context.Context, string) (*model.ShortLink, error) { return nil, ErrCacheMiss }
func (NullRemote) Set(context.Context, *model.ShortLink) error           { return nil }
func (NullRemote) Delete(context.Context, string) error                  { return nil }
func (NullRemote) HealthCheck(context.Context) error                     { return nil }

func (NullRemote) Subscribe(context.Context, func(string)) error { return nil }
