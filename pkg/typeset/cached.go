package typeset

import (
	"context"

	"github.com/nerdneilsfield/go-mathnorm/pkg/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize 外部渲染结果缓存容量
const DefaultCacheSize = 2048

// renderKey 渲染缓存键
type renderKey struct {
	latex   string
	display bool
}

// flightKey 单飞与磁盘缓存使用的字符串键
func (k renderKey) flightKey() string {
	if k.display {
		return "D\x00" + k.latex
	}
	return "I\x00" + k.latex
}

// CachedTypesetter 在引擎前面加一层有界缓存
//
// 相同 (latex, display) 的并发请求只启动一次子进程；失败结果从不写入缓存。
type CachedTypesetter struct {
	next   Typesetter
	memory cache.Cache[renderKey, string]
	disk   *cache.FileCache
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedTypesetter 创建带缓存的引擎；disk 可以为 nil
func NewCachedTypesetter(next Typesetter, capacity int, disk *cache.FileCache, logger *zap.Logger) (*CachedTypesetter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}

	memory, err := cache.NewMemoryCache[renderKey, string](capacity)
	if err != nil {
		return nil, err
	}

	return &CachedTypesetter{
		next:   next,
		memory: memory,
		disk:   disk,
		logger: logger,
	}, nil
}

// Available 与下层引擎一致
func (c *CachedTypesetter) Available() bool {
	return IsAvailable(c.next)
}

// Render 优先返回缓存结果
//
// 共享的渲染不随某一个调用方取消，只受引擎自身超时约束；
// 被取消的调用方立即返回 ctx.Err()，其余等待者照常拿到结果。
func (c *CachedTypesetter) Render(ctx context.Context, latex string, display bool) (string, error) {
	key := renderKey{latex: latex, display: display}
	if out, ok := c.memory.Get(key); ok {
		return out, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.flightKey(), func() (interface{}, error) {
		// 等待期间可能已被其他调用写入
		if out, ok := c.memory.Peek(key); ok {
			return out, nil
		}

		if c.disk != nil {
			if out, ok := c.disk.Get(key.flightKey()); ok {
				c.memory.Set(key, out)
				return out, nil
			}
		}

		out, err := c.next.Render(flightCtx, latex, display)
		if err != nil {
			return "", err
		}

		c.memory.Set(key, out)
		if c.disk != nil {
			if err := c.disk.Set(key.flightKey(), out); err != nil {
				c.logger.Warn("写入磁盘渲染缓存失败", zap.Error(err))
			}
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Stats 返回内存缓存统计
func (c *CachedTypesetter) Stats() cache.Stats {
	return c.memory.Stats()
}
