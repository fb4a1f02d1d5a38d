package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// fileEntry 磁盘缓存条目
type fileEntry struct {
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// FileCache 文件缓存实现，键为字符串，值为字符串
//
// 只用作内存缓存之后的第二级：条目从不过期，键必须完整决定值。
type FileCache struct {
	basePath string
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewFileCache 创建文件缓存
func NewFileCache(basePath string) (*FileCache, error) {
	// 确保缓存目录存在
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", basePath, err)
	}
	return &FileCache{basePath: basePath}, nil
}

// generateFileName 根据key生成文件名
func (c *FileCache) generateFileName(key string) string {
	hash := md5.Sum([]byte(key))
	return fmt.Sprintf("%x.cache", hash)
}

// getFilePath 获取缓存文件路径
func (c *FileCache) getFilePath(key string) string {
	return filepath.Join(c.basePath, c.generateFileName(key))
}

// Get 获取缓存
func (c *FileCache) Get(key string) (string, bool) {
	data, err := os.ReadFile(c.getFilePath(key))
	if err != nil {
		c.misses.Add(1)
		return "", false
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.misses.Add(1)
		return "", false
	}

	c.hits.Add(1)
	return entry.Value, true
}

// Set 设置缓存，先写临时文件再改名，避免并发读到半截内容
func (c *FileCache) Set(key string, value string) error {
	data, err := json.Marshal(fileEntry{
		Value:     value,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.basePath, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), c.getFilePath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

// Clear 删除缓存目录下的所有.cache文件
func (c *FileCache) Clear() error {
	files, err := filepath.Glob(filepath.Join(c.basePath, "*.cache"))
	if err != nil {
		return err
	}

	for _, file := range files {
		os.Remove(file)
	}

	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// Stats 获取缓存统计信息
func (c *FileCache) Stats() Stats {
	files, _ := filepath.Glob(filepath.Join(c.basePath, "*.cache"))
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   int64(len(files)),
	}
}
