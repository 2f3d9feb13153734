package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryItem struct {
	raw      []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service on a size-bounded LRU. Values are stored
// JSON-encoded so Get decodes into any destination, same as RedisCache.
type MemoryCache struct {
	items *lru.Cache[string, memoryItem]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) (*MemoryCache, error) {
	cfg := &MemoryConfig{
		MaxSize:    1000,
		DefaultTTL: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	items, err := lru.New[string, memoryItem](cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}

	return &MemoryCache{items: items, ttl: cfg.DefaultTTL, now: time.Now}, nil
}

func (mc *MemoryCache) expiry(expiration time.Duration) time.Time {
	if expiration <= 0 {
		expiration = mc.ttl
	}
	if expiration <= 0 {
		return time.Time{}
	}
	return mc.now().Add(expiration)
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	mc.items.Add(key, memoryItem{raw: raw, expireAt: mc.expiry(expiration)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	item, ok := mc.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.raw, dest)
}

func (mc *MemoryCache) lookup(key string) (memoryItem, bool) {
	item, ok := mc.items.Get(key)
	if !ok {
		return memoryItem{}, false
	}
	if item.expired(mc.now()) {
		mc.items.Remove(key)
		return memoryItem{}, false
	}
	return item, true
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.items.Remove(key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	for _, key := range keys {
		if _, ok := mc.lookup(key); ok {
			return true, nil
		}
	}
	return false, nil
}

// TryLock is process-local; it only guards against duplicate work inside one replica.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if _, ok := mc.lookup(key); ok {
		return false, nil
	}
	prev, _ := mc.items.ContainsOrAdd(key, memoryItem{raw: []byte(`"locked"`), expireAt: mc.expiry(ttl)})
	return !prev, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len reports the number of entries, including ones not yet lazily expired.
func (mc *MemoryCache) Len() int {
	return mc.items.Len()
}

func (mc *MemoryCache) Close() error {
	mc.items.Purge()
	return nil
}
