package testutils

import (
	"time"

	"github.com/nerdneilsfield/go-mathnorm/internal/config"
)

// CreateTestConfig 创建通用测试配置：禁用外部引擎，缓存容量很小
func CreateTestConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			Executable: "node",
			Script:     "scripts/render_mathjax.cjs",
			Timeout:    time.Second,
			Disabled:   true,
		},
		Cache: config.CacheConfig{
			RenderSize:   16,
			DocumentSize: 16,
		},
		Scanner: config.ScannerConfig{
			NakedLatex:       true,
			DollarDelimiters: true,
		},
		Batch: config.BatchConfig{
			Concurrency: 2,
		},
		LogLevel: "error",
	}
}
