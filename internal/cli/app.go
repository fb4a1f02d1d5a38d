package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/nerdneilsfield/go-mathnorm/internal/config"
	"github.com/nerdneilsfield/go-mathnorm/internal/logger"
	"github.com/nerdneilsfield/go-mathnorm/internal/stats"
	"github.com/nerdneilsfield/go-mathnorm/pkg/cache"
	"github.com/nerdneilsfield/go-mathnorm/pkg/mathnorm"
	"github.com/nerdneilsfield/go-mathnorm/pkg/typeset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// environment 子命令共用的配置、日志与处理器
type environment struct {
	cfg       *config.Config
	log       *zap.Logger
	node      *typeset.NodeTypesetter
	processor *mathnorm.Processor
}

// loadEnvironment 加载配置并组装处理器
func loadEnvironment() (*environment, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debugMode {
		cfg.Debug = true
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	processor, node, err := NewProcessor(cfg, log)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, log: log, node: node, processor: processor}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return logger.NewLogger(true), nil
	}
	return logger.NewLoggerWithLevel(cfg.LogLevel)
}

// NewProcessor 按配置组装处理器：node 引擎外面包一层渲染缓存（可选磁盘层），
// 再交给带文档缓存的处理器。引擎被禁用时返回的 node 为 nil。
func NewProcessor(cfg *config.Config, log *zap.Logger) (*mathnorm.Processor, *typeset.NodeTypesetter, error) {
	var (
		engine typeset.Typesetter
		node   *typeset.NodeTypesetter
	)

	if !cfg.Engine.Disabled {
		node = typeset.NewNodeTypesetter(typeset.NodeConfig{
			Executable: cfg.Engine.Executable,
			Script:     cfg.Engine.Script,
			Timeout:    cfg.Engine.Timeout,
		}, log)

		var disk *cache.FileCache
		if cfg.Cache.RenderDir != "" {
			var err error
			disk, err = cache.NewFileCache(cfg.Cache.RenderDir)
			if err != nil {
				return nil, nil, fmt.Errorf("open render cache: %w", err)
			}
		}

		cached, err := typeset.NewCachedTypesetter(node, cfg.Cache.RenderSize, disk, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create render cache: %w", err)
		}
		engine = cached
	}

	processor, err := mathnorm.NewProcessor(mathnorm.Options{
		Engine:            engine,
		DocumentCacheSize: cfg.Cache.DocumentSize,
		Scanner: mathnorm.ScannerOptions{
			NakedLatex:       cfg.Scanner.NakedLatex,
			DollarDelimiters: cfg.Scanner.DollarDelimiters,
		},
		Logger: log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create processor: %w", err)
	}
	return processor, node, nil
}

// readInput 读取文件，没有参数时读取标准输入
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// recordHistory 配置了 history.path 时写入一条记录，失败只记日志
func (e *environment) recordHistory(record *stats.RunRecord) {
	if e.cfg.History.Path == "" {
		return
	}
	db, err := stats.NewDatabase(e.cfg.History.Path, e.log)
	if err != nil {
		e.log.Warn("failed to open history database", zap.Error(err))
		return
	}
	if err := db.AddRunRecord(record); err != nil {
		e.log.Warn("failed to record run", zap.Error(err))
		return
	}
	cs := e.processor.Stats()
	if err := db.RecordCacheStats(cs.Hits, cs.Misses); err != nil {
		e.log.Warn("failed to record cache stats", zap.Error(err))
	}
}
