package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig 外部排版引擎配置
type EngineConfig struct {
	Executable string        `mapstructure:"executable"` // 可执行文件，默认 node
	Script     string        `mapstructure:"script"`     // 渲染脚本路径
	Timeout    time.Duration `mapstructure:"timeout"`    // 单次渲染超时
	Disabled   bool          `mapstructure:"disabled"`   // 强制禁用外部引擎
}

// CacheConfig 缓存配置
type CacheConfig struct {
	RenderSize   int    `mapstructure:"render_size"`   // 公式渲染缓存容量
	DocumentSize int    `mapstructure:"document_size"` // 文档缓存容量
	RenderDir    string `mapstructure:"render_dir"`    // 渲染结果的磁盘缓存目录，空表示只用内存
}

// ScannerConfig 公式扫描配置
type ScannerConfig struct {
	NakedLatex       bool `mapstructure:"naked_latex"`       // 识别未加定界符的 LaTeX
	DollarDelimiters bool `mapstructure:"dollar_delimiters"` // 识别 $...$ 与 $$...$$
}

// BatchConfig 批量渲染配置
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"` // 同时处理的文档数
}

// HistoryConfig 渲染历史配置
type HistoryConfig struct {
	Path string `mapstructure:"path"` // 历史数据库文件，空表示不记录
}

// Config 保存所有配置
type Config struct {
	Engine   EngineConfig  `mapstructure:"engine"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Scanner  ScannerConfig `mapstructure:"scanner"`
	Batch    BatchConfig   `mapstructure:"batch"`
	History  HistoryConfig `mapstructure:"history"`
	LogLevel string        `mapstructure:"log_level"` // 日志级别
	Debug    bool          `mapstructure:"debug"`
}

// LoadConfig 从文件加载配置，环境变量 MATHNORM_* 优先于文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果配置路径已指定，则直接使用
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 查找家目录中的配置文件
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".mathnorm")
		v.SetConfigType("yaml")
	}

	// 读取环境变量，engine.timeout → MATHNORM_ENGINE_TIMEOUT
	v.SetEnvPrefix("MATHNORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，则使用默认值
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig 将配置保存到文件
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(home, ".mathnorm.yaml")
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	// 添加所有配置项
	for key, value := range structToMap(config) {
		v.Set(key, value)
	}

	// 创建父目录（如果不存在）
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return v.WriteConfig()
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Executable: "node",
			Script:     "scripts/render_mathjax.cjs",
			Timeout:    5 * time.Second,
		},
		Cache: CacheConfig{
			RenderSize:   2048,
			DocumentSize: 4096,
		},
		Scanner: ScannerConfig{
			NakedLatex:       true,
			DollarDelimiters: true,
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
		LogLevel: "info",
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if c.Cache.RenderSize <= 0 {
		return fmt.Errorf("cache.render_size must be positive, got %d", c.Cache.RenderSize)
	}
	if c.Cache.DocumentSize <= 0 {
		return fmt.Errorf("cache.document_size must be positive, got %d", c.Cache.DocumentSize)
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if !c.Engine.Disabled && c.Engine.Executable == "" {
		return errors.New("engine.executable must be set unless engine.disabled is true")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	for key, value := range structToMap(d) {
		v.SetDefault(key, value)
	}
}

// structToMap 把配置展开为 viper 的点分键
func structToMap(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"engine.executable":         config.Engine.Executable,
		"engine.script":             config.Engine.Script,
		"engine.timeout":            config.Engine.Timeout.String(),
		"engine.disabled":           config.Engine.Disabled,
		"cache.render_size":         config.Cache.RenderSize,
		"cache.document_size":       config.Cache.DocumentSize,
		"cache.render_dir":          config.Cache.RenderDir,
		"scanner.naked_latex":       config.Scanner.NakedLatex,
		"scanner.dollar_delimiters": config.Scanner.DollarDelimiters,
		"batch.concurrency":         config.Batch.Concurrency,
		"history.path":              config.History.Path,
		"log_level":                 config.LogLevel,
		"debug":                     config.Debug,
	}
}

// Values 返回配置的点分键与值，时长以字符串表示
func Values(config *Config) map[string]interface{} {
	return structToMap(config)
}
