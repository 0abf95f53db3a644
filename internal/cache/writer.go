package cache

import (
	"context"
	"errors"
	"time"
)

// ErrServiceUnavailable 表示 Bucket 未绑定 Service。
var ErrServiceUnavailable = errors.New("cache service unavailable")

// Bucket 把 Service 绑定到单个 namespace，并带上默认 TTL。
type Bucket struct {
	svc       *Service
	namespace string
	ttl       time.Duration
}

// Bucket 构造 namespace 级写入器；ttl <= 0 表示默认永不过期。
func (s *Service) Bucket(namespace string, ttl time.Duration) Bucket {
	return Bucket{svc: s, namespace: namespace, ttl: ttl}
}

// Enabled 返回当前是否具备缓存能力。
func (b Bucket) Enabled() bool {
	return b.svc != nil
}

func (b Bucket) Namespace() string { return b.namespace }

func (b Bucket) TTL() time.Duration { return b.ttl }

// Put 以 Bucket 默认 TTL 写入。
func (b Bucket) Put(ctx context.Context, key string, value any) error {
	return b.PutTTL(ctx, key, value, b.ttl)
}

// PutTTL 以指定 TTL 写入，TTL 向上取整到秒。
func (b Bucket) PutTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if b.svc == nil {
		return ErrServiceUnavailable
	}
	return b.svc.Store(ctx, b.namespace, key, value, TTLSeconds(ttl))
}

func (b Bucket) Get(ctx context.Context, key string, out any) (bool, error) {
	if b.svc == nil {
		return false, ErrServiceUnavailable
	}
	return b.svc.Get(ctx, b.namespace, key, out)
}

func (b Bucket) Delete(ctx context.Context, key string) error {
	if b.svc == nil {
		return ErrServiceUnavailable
	}
	return b.svc.Delete(ctx, b.namespace, key)
}

func (b Bucket) Exists(ctx context.Context, key string) (bool, error) {
	if b.svc == nil {
		return false, ErrServiceUnavailable
	}
	return b.svc.Exists(ctx, b.namespace, key)
}
