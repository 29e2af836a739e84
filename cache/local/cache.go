package local

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/w-h-a/medimate/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type localCache struct {
	options cache.Options
	entries map[string]entry
	mtx     sync.RWMutex
}

func (c *localCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mtx.RLock()
	e, ok := c.entries[c.options.Prefix+key]
	c.mtx.RUnlock()

	if !ok {
		return false, nil
	}

	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		_ = c.Del(ctx, key)
		return false, nil
	}

	if err := json.Unmarshal(e.value, dst); err != nil {
		_ = c.Del(ctx, key)
		return false, nil
	}

	return true, nil
}

func (c *localCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	bs, err := json.Marshal(val)
	if err != nil {
		return err
	}

	e := entry{value: bs}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries[c.options.Prefix+key] = e

	return nil
}

func (c *localCache) Del(ctx context.Context, keys ...string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	for _, k := range keys {
		delete(c.entries, c.options.Prefix+k)
	}

	return nil
}

func NewCache(opts ...cache.Option) cache.Cache {
	options := cache.NewOptions(opts...)

	return &localCache{
		options: options,
		entries: map[string]entry{},
		mtx:     sync.RWMutex{},
	}
}
