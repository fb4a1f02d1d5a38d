package mathnorm

import (
	"context"

	"github.com/nerdneilsfield/go-mathnorm/pkg/cache"
	"github.com/nerdneilsfield/go-mathnorm/pkg/typeset"
	"go.uber.org/zap"
)

// DefaultDocumentCacheSize 文档缓存默认容量
const DefaultDocumentCacheSize = 4096

// Options 处理器选项
type Options struct {
	// 外部排版引擎，nil 表示只使用近似转换器与浏览器占位符
	Engine typeset.Typesetter
	// 文档缓存容量，<= 0 时使用默认值
	DocumentCacheSize int
	// 扫描选项
	Scanner ScannerOptions
	// 日志，nil 时不输出
	Logger *zap.Logger
}

// documentKey 文档缓存的键，结果完全由文档与目标决定
type documentKey struct {
	doc    string
	target RenderTarget
}

// Processor 公式处理入口：扫描文档，逐处分发渲染，并按文档缓存结果。
// 进程内创建一次，可被多个请求并发使用。
type Processor struct {
	scanner    *Scanner
	dispatcher *Dispatcher
	documents  cache.Cache[documentKey, string]
	logger     *zap.Logger
}

// NewProcessor 创建处理器
func NewProcessor(opts Options) (*Processor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	size := opts.DocumentCacheSize
	if size <= 0 {
		size = DefaultDocumentCacheSize
	}
	documents, err := cache.NewMemoryCache[documentKey, string](size)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		scanner:    NewScanner(opts.Scanner),
		dispatcher: NewDispatcher(opts.Engine, NewConverter(), logger),
		documents:  documents,
		logger:     logger,
	}
	logger.Debug("math processor ready",
		zap.Bool("engine", p.dispatcher.EngineAvailable()),
		zap.Int("document_cache", size),
		zap.Bool("naked_latex", opts.Scanner.NakedLatex))
	return p, nil
}

// Process 把文档中所有公式替换为渲染结果。
// 空文档原样返回；任何渲染失败都会降级处理，不会返回错误。
func (p *Processor) Process(ctx context.Context, doc string, target RenderTarget) string {
	if doc == "" {
		return doc
	}

	key := documentKey{doc: doc, target: target}
	if out, ok := p.documents.Get(key); ok {
		return out
	}

	degraded := false
	out := p.scanner.Rewrite(doc, func(span MathSpan) string {
		html, failed := p.dispatcher.render(ctx, span.Latex, span.Display, target)
		if failed {
			degraded = true
		}
		return html
	})

	if degraded || ctx.Err() != nil {
		p.logger.Debug("document rendered in degraded mode, not cached",
			zap.String("target", target.String()))
		return out
	}
	p.documents.Set(key, out)
	return out
}

// Scan 返回文档中找到的公式
func (p *Processor) Scan(doc string) []MathSpan {
	return p.scanner.Scan(doc)
}

// EngineAvailable 外部引擎是否可用
func (p *Processor) EngineAvailable() bool {
	return p.dispatcher.EngineAvailable()
}

// Stats 文档缓存统计
func (p *Processor) Stats() cache.Stats {
	return p.documents.Stats()
}
