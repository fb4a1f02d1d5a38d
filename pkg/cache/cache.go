package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats 缓存统计信息
type Stats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// Cache 有界缓存接口
type Cache[K comparable, V any] interface {
	// Get 获取缓存
	Get(key K) (V, bool)

	// Peek 获取缓存但不更新使用顺序和统计
	Peek(key K) (V, bool)

	// Set 设置缓存
	Set(key K, value V)

	// Len 当前条目数
	Len() int

	// Stats 获取缓存统计信息
	Stats() Stats

	// Clear 清除所有缓存
	Clear()
}

// MemoryCache 内存缓存实现，容量固定，按最近最少使用淘汰
type MemoryCache[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache[K comparable, V any](capacity int) (*MemoryCache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	entries, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	return &MemoryCache[K, V]{entries: entries}, nil
}

// MustNewMemoryCache 与 NewMemoryCache 相同，容量非法时 panic
func MustNewMemoryCache[K comparable, V any](capacity int) *MemoryCache[K, V] {
	c, err := NewMemoryCache[K, V](capacity)
	if err != nil {
		panic(err)
	}
	return c
}

// Get 获取缓存
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	value, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return value, false
	}
	c.hits.Add(1)
	return value, true
}

// Peek 获取缓存但不更新使用顺序和统计
func (c *MemoryCache[K, V]) Peek(key K) (V, bool) {
	return c.entries.Peek(key)
}

// Set 设置缓存
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.entries.Add(key, value)
}

// Len 当前条目数
func (c *MemoryCache[K, V]) Len() int {
	return c.entries.Len()
}

// Clear 清除所有缓存
func (c *MemoryCache[K, V]) Clear() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats 获取缓存统计信息
func (c *MemoryCache[K, V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   int64(c.entries.Len()),
	}
}
