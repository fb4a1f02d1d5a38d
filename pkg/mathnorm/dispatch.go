package mathnorm

import (
	"context"
	"strings"

	"github.com/nerdneilsfield/go-mathnorm/pkg/typeset"
	"go.uber.org/zap"
)

// RenderTarget 渲染目标
type RenderTarget struct {
	// 输出交给 PDF 渲染器
	ForPDF bool
	// 输出交给浏览器，由客户端排版
	ForBrowser bool
}

var (
	// TargetHTML 服务端渲染的 HTML
	TargetHTML = RenderTarget{}
	// TargetPDF PDF 导出
	TargetPDF = RenderTarget{ForPDF: true}
	// TargetBrowser 浏览器端排版
	TargetBrowser = RenderTarget{ForBrowser: true}
)

func (t RenderTarget) String() string {
	switch {
	case t.ForPDF && t.ForBrowser:
		return "pdf+browser"
	case t.ForPDF:
		return "pdf"
	case t.ForBrowser:
		return "browser"
	}
	return "html"
}

// printColors PDF 渲染器不解析 SVG 内的 currentColor，统一改成黑色
var printColors = strings.NewReplacer(
	`fill="currentColor"`, `fill="#000"`,
	`fill='currentColor'`, `fill='#000'`,
	`stroke="currentColor"`, `stroke="#000"`,
	`stroke='currentColor'`, `stroke='#000'`,
)

// placeholderEscaper 浏览器占位符中的 LaTeX 全部转成实体，
// 再次处理时不会被任何定界符正则或裸 LaTeX 规则匹配
var placeholderEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
	`\`, "&#92;",
	"[", "&#91;",
	"]", "&#93;",
	"(", "&#40;",
	")", "&#41;",
	"{", "&#123;",
	"}", "&#125;",
	"$", "&#36;",
	"^", "&#94;",
	"_", "&#95;",
)

// Dispatcher 为每处公式选择渲染路径：外部排版引擎、近似转换器或浏览器占位符
type Dispatcher struct {
	engine    typeset.Typesetter
	available bool
	converter *Converter
	logger    *zap.Logger
}

// NewDispatcher 创建分发器。engine 为 nil 或不可用时只走转换器和占位符，
// 可用性在这里确定一次，之后不再检查。
func NewDispatcher(engine typeset.Typesetter, converter *Converter, logger *zap.Logger) *Dispatcher {
	if converter == nil {
		converter = NewConverter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		engine:    engine,
		available: typeset.IsAvailable(engine),
		converter: converter,
		logger:    logger,
	}
}

// EngineAvailable 外部引擎是否可用
func (d *Dispatcher) EngineAvailable() bool {
	return d.available
}

// Render 渲染一处公式，从不返回错误
func (d *Dispatcher) Render(ctx context.Context, latex string, display bool, target RenderTarget) string {
	out, _ := d.render(ctx, latex, display, target)
	return out
}

// render 额外报告结果是否因引擎失败而降级，降级的结果不能进入文档缓存
func (d *Dispatcher) render(ctx context.Context, latex string, display bool, target RenderTarget) (string, bool) {
	if target.ForPDF && hasTableEnvironment(latex) {
		return d.converter.Convert(latex, display), false
	}

	degraded := false
	if d.available && !target.ForBrowser {
		svg, err := d.engine.Render(ctx, latex, display)
		if err == nil {
			if target.ForPDF {
				svg = printColors.Replace(svg)
			}
			return wrapMath(svg, display), false
		}
		d.logger.Warn("typesetting engine failed, falling back",
			zap.String("latex", latex),
			zap.Bool("display", display),
			zap.Error(err))
		degraded = true
	}

	if target.ForPDF {
		return d.converter.Convert(latex, display), degraded
	}
	return browserPlaceholder(latex, display), degraded
}

// browserPlaceholder 交给客户端排版库的占位符
func browserPlaceholder(latex string, display bool) string {
	escaped := placeholderEscaper.Replace(latex)
	if display {
		return `<span class="math-display">&#92;&#91;` + escaped + `&#92;&#93;</span>`
	}
	return `<span class="math-inline">&#92;&#40;` + escaped + `&#92;&#41;</span>`
}
