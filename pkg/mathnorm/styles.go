package mathnorm

import (
	"strings"

	"golang.org/x/net/html"
)

// Stylesheet 近似转换器与引擎输出依赖的样式
const Stylesheet = `/* engine SVG output */
.math-display { display: block; text-align: center; margin: .8em 0; font-size: 1.1em; }
.math-display svg { display: inline-block; vertical-align: middle; max-width: 100%; }
.math-inline { display: inline; vertical-align: middle; }
.math-inline svg { display: inline-block; vertical-align: middle; }
/* approximated HTML */
.frac { display: inline-block; vertical-align: middle; text-align: center; margin: 0 .15em; }
.num { display: block; border-bottom: 1px solid #000; padding: 0 .2em .1em; min-width: 1em; }
.den { display: block; padding: .1em .2em 0; }
.sqrt-arg { border-top: 1px solid #000; padding: 0 .1em; }
.math-env { display: block; margin: .5em 0 .5em 1em; }
.math-row { display: block; margin: .2em 0; }
.cases-table { display: inline-table; vertical-align: middle; border-collapse: collapse; margin: .3em 0; }
.cases-brace { font-size: 2.2em; line-height: 1; padding-right: .15em; vertical-align: middle; font-family: serif; font-weight: 100; }
.cases-row { padding: .15em 0; }
.array-table { display: inline-table; border-collapse: collapse; margin: .3em 0; }
.array-cell { padding: 0 .4em; text-align: center; }
.mf { font-style: normal; }
.latex-verbatim { white-space: pre-wrap; }
sup { font-size: .75em; vertical-align: super; }
sub { font-size: .75em; vertical-align: sub; }
`

// StyleTag 返回包在 <style> 中的样式表
func StyleTag() string {
	return "<style>\n" + Stylesheet + "</style>"
}

// mathJaxScript 浏览器目标的页面需要客户端排版脚本
const mathJaxScript = `<script src="https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-svg.js"></script>`

// Page 把渲染结果包装为带样式表的完整页面；浏览器目标额外加载客户端排版脚本
func Page(title, body string, target RenderTarget) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	sb.WriteString(StyleTag() + "\n")
	if target.ForBrowser {
		sb.WriteString(mathJaxScript + "\n")
	}
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String()
}
