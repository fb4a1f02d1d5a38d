// Package markdown 把 Markdown 写成的题目转换为 HTML，
// 其中的 $...$ 与 $$...$$ 公式输出为 \(..\) 与 \[..\] 定界符，交给 mathnorm 继续处理。
package markdown

import (
	"bytes"
	"fmt"

	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Document 转换结果
type Document struct {
	// 正文 HTML
	HTML string
	// YAML front matter，没有时为空
	Meta map[string]interface{}
}

// Converter Markdown 转换器，可并发使用
type Converter struct {
	md goldmark.Markdown
}

// NewConverter 创建转换器。原始 HTML 会被保留，编辑器导出的公式节点可以混写在 Markdown 中。
func NewConverter() *Converter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			meta.Meta,
			delimiterExtension{},
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	return &Converter{md: md}
}

// Convert 转换 Markdown
func (c *Converter) Convert(src []byte) (*Document, error) {
	var buf bytes.Buffer
	ctx := parser.NewContext()
	if err := c.md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return &Document{
		HTML: buf.String(),
		Meta: meta.Get(ctx),
	}, nil
}

// delimiterExtension 解析 $ 与 $$ 公式，渲染为 LaTeX 定界符
type delimiterExtension struct{}

func (delimiterExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		util.Prioritized(mathjax.NewMathJaxBlockParser(), 701),
	), parser.WithInlineParsers(
		util.Prioritized(mathjax.NewInlineMathParser(), 501),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&delimiterRenderer{}, 501),
	))
}

type delimiterRenderer struct{}

var _ renderer.NodeRenderer = &delimiterRenderer{}

func (r *delimiterRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(mathjax.KindInlineMath, r.renderInlineMath)
	reg.Register(mathjax.KindMathBlock, r.renderBlockMath)
}

func (r *delimiterRenderer) renderInlineMath(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		text, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		value := text.Segment.Value(source)
		if bytes.HasSuffix(value, []byte("\n")) {
			buf.Write(value[:len(value)-1])
			if c != n.LastChild() {
				buf.WriteByte(' ')
			}
		} else {
			buf.Write(value)
		}
	}

	_, _ = w.WriteString(`\(`)
	_, _ = w.Write(util.EscapeHTML(buf.Bytes()))
	_, _ = w.WriteString(`\)`)
	return ast.WalkSkipChildren, nil
}

func (r *delimiterRenderer) renderBlockMath(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}

	_, _ = w.WriteString("<p>\\[")
	_, _ = w.Write(util.EscapeHTML(bytes.TrimSpace(buf.Bytes())))
	_, _ = w.WriteString("\\]</p>\n")
	return ast.WalkSkipChildren, nil
}
