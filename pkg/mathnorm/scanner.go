package mathnorm

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dlclark/regexp2"
	"golang.org/x/net/html"
)

// Dialect 公式在文档中的书写形式
type Dialect int

const (
	DialectTiptap          Dialect = iota // <span data-type="math" data-latex="...">
	DialectCKEditorLatex                  // <span class="math-tex" data-latex="...">
	DialectCKEditorFormula                // <span class="math-tex" data-formula="...">
	DialectCKEditorBody                   // <span class="math-tex">\(...\)</span>
	DialectDisplayBracket                 // \[ ... \]
	DialectDisplayDollar                  // $$ ... $$
	DialectInlineParen                    // \( ... \)
	DialectInlineDollar                   // $ ... $
	DialectNaked                          // 正文中未加定界符的 LaTeX
)

var dialectNames = map[Dialect]string{
	DialectTiptap:          "tiptap",
	DialectCKEditorLatex:   "ckeditor-latex",
	DialectCKEditorFormula: "ckeditor-formula",
	DialectCKEditorBody:    "ckeditor-body",
	DialectDisplayBracket:  "display-bracket",
	DialectDisplayDollar:   "display-dollar",
	DialectInlineParen:     "inline-paren",
	DialectInlineDollar:    "inline-dollar",
	DialectNaked:           "naked",
}

func (d Dialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return "unknown"
}

// MathSpan 文档中找到的一处公式
type MathSpan struct {
	// 规范化之后的 LaTeX
	Latex string
	// 是否按块级公式显示
	Display bool
	// 来源写法
	Dialect Dialect
	// 文档中被替换掉的原始文本
	Source string
}

// RenderFunc 把一处公式渲染为 HTML
type RenderFunc func(span MathSpan) string

// ScannerOptions 扫描选项
type ScannerOptions struct {
	// 是否识别未加定界符的 LaTeX
	NakedLatex bool
	// 是否识别 $...$ 与 $$...$$
	DollarDelimiters bool
}

// DefaultScannerOptions 默认扫描选项
var DefaultScannerOptions = ScannerOptions{
	NakedLatex:       true,
	DollarDelimiters: true,
}

// ownedClasses 本包输出的容器类名，再次处理时整体跳过
var ownedClasses = []string{"math-inline", "math-display", "latex-verbatim"}

// minNakedLength 裸 LaTeX 的最短长度，更短的匹配视为误报
const minNakedLength = 3

type scanPatterns struct {
	verbatim       *regexp.Regexp
	paragraphBreak *regexp.Regexp
	elementStart   *regexp.Regexp
	displayBracket *regexp.Regexp
	inlineParen    *regexp.Regexp
	displayDollar  *regexp2.Regexp
	inlineDollar   *regexp2.Regexp
	naked          *regexp2.Regexp
	tag            *regexp.Regexp
	tagName        *regexp.Regexp
	displayAttr    *regexp.Regexp
	displayHint    *regexp.Regexp
}

func mustRegexp2(pattern string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(pattern, opts)
	re.MatchTimeout = time.Second
	return re
}

var defaultScanPatterns = sync.OnceValue(func() *scanPatterns {
	return &scanPatterns{
		verbatim:       regexp.MustCompile(`(?s)\\begin\{verbatim\}(.*?)\\end\{verbatim\}`),
		paragraphBreak: regexp.MustCompile(`(?i)</p>\s*<p(?:\s[^>]*)?>`),
		elementStart:   regexp.MustCompile(`(?i)<(?:span|div|pre)\b`),
		displayBracket: regexp.MustCompile(`(?s)\\\[(.*?)\\\]`),
		inlineParen:    regexp.MustCompile(`(?s)\\\((.*?)\\\)`),
		displayDollar:  mustRegexp2(`(?<!\\)\$\$(.+?)(?<!\\)\$\$`, regexp2.Singleline),
		inlineDollar:   mustRegexp2(`(?<!\\)\$(?!\$)([^$\n]+?)(?<!\\)\$`, regexp2.None),
		naked: mustRegexp2(
			`(?<!&#92;&#40;)`+
				`([^\s<>&;\uE000\uE001]*`+
				`(?:\\[dt]?frac\{[^{}]*\}\{[^{}]*\}|\^\{[^{}]*\}|_\{[^{}]*\}|\\sqrt(?:\[[^\]]*\])?\{[^{}]*\})`+
				`[^\s<>&\uE000\uE001]*?)`+
				`(?=[.,;:!?]*(?:\s|$|<|&|\uE000))`,
			regexp2.None,
		),
		tag:         regexp.MustCompile(`<[^<>]*>`),
		tagName:     regexp.MustCompile(`^<(/?)([a-zA-Z][a-zA-Z0-9]*)`),
		displayAttr: regexp.MustCompile(`data-display\s*=\s*["']true["']`),
		displayHint: regexp.MustCompile(`\\begin|\\\[|\\dfrac|\\displaystyle`),
	}
})

// Scanner 在 HTML 文档中定位各种写法的公式。
// Scanner 本身无状态，可以并发使用。
type Scanner struct {
	rules    *rules
	patterns *scanPatterns
	opts     ScannerOptions
}

// NewScanner 创建扫描器
func NewScanner(opts ScannerOptions) *Scanner {
	return &Scanner{
		rules:    defaultRules(),
		patterns: defaultScanPatterns(),
		opts:     opts,
	}
}

// IsDisplayMath 判断公式是否按块级显示：标签带 data-display="true"，
// 或公式本身含有 \begin、\[、\dfrac、\displaystyle
func IsDisplayMath(spanHTML, latex string) bool {
	p := defaultScanPatterns()
	return p.displayAttr.MatchString(spanHTML) || p.displayHint.MatchString(latex)
}

// Scan 返回文档中所有公式，不修改文档
func (s *Scanner) Scan(doc string) []MathSpan {
	var spans []MathSpan
	s.Rewrite(doc, func(span MathSpan) string {
		spans = append(spans, span)
		return span.Source
	})
	return spans
}

// Rewrite 按固定顺序扫描文档，把每处公式替换为 render 的结果：
// verbatim 块、富文本编辑器节点、\[..\] 与 $$..$$、\(..\) 与 $..$、裸 LaTeX。
// 已替换的片段用占位符保护，后面的轮次不会再次匹配。
func (s *Scanner) Rewrite(doc string, render RenderFunc) string {
	if doc == "" {
		return doc
	}

	pm := NewPreserveManager()
	doc = s.rewriteVerbatim(doc, pm)
	doc = s.rewriteElements(doc, pm, render)
	doc = s.rewriteDelimited(doc, pm, render, s.patterns.displayBracket, DialectDisplayBracket)
	if s.opts.DollarDelimiters {
		doc = s.rewriteDelimited2(doc, pm, render, s.patterns.displayDollar, DialectDisplayDollar)
	}
	doc = s.rewriteDelimited(doc, pm, render, s.patterns.inlineParen, DialectInlineParen)
	if s.opts.DollarDelimiters {
		doc = s.rewriteDelimited2(doc, pm, render, s.patterns.inlineDollar, DialectInlineDollar)
	}
	if s.opts.NakedLatex {
		doc = s.rewriteNaked(doc, pm, render)
	}
	doc = s.rules.texttt.ReplaceAllString(doc, `<code>${1}</code>`)

	return pm.Restore(doc)
}

// rewriteVerbatim \begin{verbatim} 块原样显示为预格式文本
func (s *Scanner) rewriteVerbatim(doc string, pm *PreserveManager) string {
	if !strings.Contains(doc, `\begin{verbatim}`) {
		return doc
	}
	return replaceSubmatchFunc(s.patterns.verbatim, doc, func(groups []string) string {
		return pm.Protect(s.renderVerbatim(groups[1]))
	})
}

// renderVerbatim 编辑器的段落与换行还原为真实换行，其余标签去掉，再整体转义
func (s *Scanner) renderVerbatim(content string) string {
	content = s.patterns.paragraphBreak.ReplaceAllString(content, "\n")
	content = s.rules.brTag.ReplaceAllString(content, "\n")
	content = s.rules.htmlTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.Trim(content, "\n")

	escaped := strings.ReplaceAll(html.EscapeString(content), "\n", "<br>")
	return `<pre class="latex-verbatim"><code>` + escaped + `</code></pre>`
}

// element 文档中的一个元素
type element struct {
	name       string
	attrs      map[string]string
	start      int // 开始标签的位置
	tagEnd     int // 开始标签之后
	closeStart int // 结束标签的位置
	end        int // 结束标签之后
}

// readStartTag 用 html 分词器读取 doc[start:] 处的开始标签
func readStartTag(doc string, start int) (*element, bool) {
	z := html.NewTokenizer(strings.NewReader(doc[start:]))
	tt := z.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return nil, false
	}
	size := len(z.Raw())

	name, hasAttr := z.TagName()
	el := &element{
		name:   string(name),
		attrs:  make(map[string]string),
		start:  start,
		tagEnd: start + size,
	}
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		el.attrs[string(key)] = string(val)
	}

	if tt == html.SelfClosingTagToken {
		el.closeStart, el.end = el.tagEnd, el.tagEnd
	}
	return el, true
}

// findClose 找到与开始标签配对的结束标签，同名元素按深度计数
func findClose(doc string, el *element) bool {
	if el.end > 0 {
		return true
	}

	z := html.NewTokenizer(strings.NewReader(doc[el.tagEnd:]))
	offset := el.tagEnd
	depth := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return false
		}
		tokenStart := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == el.name {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == el.name {
				depth--
				if depth == 0 {
					el.closeStart, el.end = tokenStart, offset
					return true
				}
			}
		}
	}
}

func hasClass(classes []string, names ...string) bool {
	for _, c := range classes {
		for _, name := range names {
			if c == name {
				return true
			}
		}
	}
	return false
}

// rewriteElements 按文档顺序处理富文本编辑器的公式节点，
// 本包以前输出过的容器整体保护，保证重复处理结果不变
func (s *Scanner) rewriteElements(doc string, pm *PreserveManager, render RenderFunc) string {
	if !s.patterns.elementStart.MatchString(doc) {
		return doc
	}

	var b strings.Builder
	cursor := 0
	for cursor < len(doc) {
		loc := s.patterns.elementStart.FindStringIndex(doc[cursor:])
		if loc == nil {
			break
		}
		start := cursor + loc[0]

		el, ok := readStartTag(doc, start)
		var replacement string
		if ok {
			replacement, ok = s.rewriteElement(doc, el, pm, render)
		}
		if !ok {
			b.WriteString(doc[cursor : start+1])
			cursor = start + 1
			continue
		}

		b.WriteString(doc[cursor:start])
		b.WriteString(replacement)
		cursor = el.end
	}
	b.WriteString(doc[cursor:])
	return b.String()
}

func (s *Scanner) rewriteElement(doc string, el *element, pm *PreserveManager, render RenderFunc) (string, bool) {
	classes := strings.Fields(el.attrs["class"])
	if hasClass(classes, ownedClasses...) {
		if !findClose(doc, el) {
			return "", false
		}
		return pm.Protect(doc[el.start:el.end]), true
	}

	if el.name != "span" {
		return "", false
	}

	var (
		dialect Dialect
		latex   string
		display bool
	)
	switch {
	case el.attrs["data-type"] == "math":
		dialect = DialectTiptap
		latex = el.attrs["data-latex"]
		if latex == "" {
			latex = el.attrs["data-formula"]
		}
	case hasClass(classes, "math-tex"):
		switch {
		case el.attrs["data-latex"] != "":
			dialect, latex = DialectCKEditorLatex, el.attrs["data-latex"]
		case el.attrs["data-formula"] != "":
			dialect, latex = DialectCKEditorFormula, el.attrs["data-formula"]
		default:
			if !findClose(doc, el) {
				return "", false
			}
			dialect = DialectCKEditorBody
			latex, display = unwrapDelimiters(bodyText(doc[el.tagEnd:el.closeStart]))
		}
	default:
		return "", false
	}

	latex = Normalize(latex)
	if latex == "" || !findClose(doc, el) {
		return "", false
	}

	source := doc[el.start:el.end]
	span := MathSpan{
		Latex:   latex,
		Display: display || IsDisplayMath(doc[el.start:el.tagEnd], latex),
		Dialect: dialect,
		Source:  source,
	}
	return pm.Protect(render(span)), true
}

// bodyText 取元素内容的纯文本
func bodyText(body string) string {
	body = defaultRules().brTag.ReplaceAllString(body, " ")
	if !strings.Contains(body, "<") {
		return html.UnescapeString(body)
	}

	d, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return defaultRules().cleanHTML(body)
	}
	return d.Text()
}

// unwrapDelimiters 去掉内容两端的 \(..\)、\[..\]、$$..$$ 或 $..$
func unwrapDelimiters(text string) (string, bool) {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, `\(`) && strings.HasSuffix(text, `\)`) && len(text) >= 4:
		return text[2 : len(text)-2], false
	case strings.HasPrefix(text, `\[`) && strings.HasSuffix(text, `\]`) && len(text) >= 4:
		return text[2 : len(text)-2], true
	case strings.HasPrefix(text, "$$") && strings.HasSuffix(text, "$$") && len(text) >= 4:
		return text[2 : len(text)-2], true
	case strings.HasPrefix(text, "$") && strings.HasSuffix(text, "$") && len(text) >= 2:
		return text[1 : len(text)-1], false
	}
	return text, false
}

// delimitedSpan 由定界符写法构造 MathSpan。\[ 与 $$ 总是块级，
// 行内定界符中的公式按 IsDisplayMath 的规则提升为块级。
func delimitedSpan(source, inner string, dialect Dialect) (MathSpan, bool) {
	latex := Normalize(inner)
	if latex == "" {
		return MathSpan{}, false
	}

	display := dialect == DialectDisplayBracket || dialect == DialectDisplayDollar
	return MathSpan{
		Latex:   latex,
		Display: display || IsDisplayMath("", latex),
		Dialect: dialect,
		Source:  source,
	}, true
}

func (s *Scanner) rewriteDelimited(doc string, pm *PreserveManager, render RenderFunc, re *regexp.Regexp, dialect Dialect) string {
	return replaceSubmatchFunc(re, doc, func(groups []string) string {
		span, ok := delimitedSpan(groups[0], groups[1], dialect)
		if !ok {
			return groups[0]
		}
		return pm.Protect(render(span))
	})
}

func (s *Scanner) rewriteDelimited2(doc string, pm *PreserveManager, render RenderFunc, re *regexp2.Regexp, dialect Dialect) string {
	if !strings.Contains(doc, "$") {
		return doc
	}
	out, err := re.ReplaceFunc(doc, func(m regexp2.Match) string {
		span, ok := delimitedSpan(m.String(), m.GroupByNumber(1).String(), dialect)
		if !ok {
			return m.String()
		}
		return pm.Protect(render(span))
	}, -1, -1)
	if err != nil {
		return doc
	}
	return out
}

// skipTextIn 这些元素中的文本不做裸 LaTeX 识别
var skipTextIn = map[string]bool{
	"code": true, "pre": true, "script": true, "style": true, "textarea": true,
}

// rewriteNaked 只在标签之间的文本里识别裸 LaTeX，不会匹配到属性值
func (s *Scanner) rewriteNaked(doc string, pm *PreserveManager, render RenderFunc) string {
	if !strings.ContainsAny(doc, `^_\`) {
		return doc
	}

	var b strings.Builder
	skipDepth := 0
	cursor := 0
	for _, loc := range s.patterns.tag.FindAllStringIndex(doc, -1) {
		b.WriteString(s.rewriteNakedText(doc[cursor:loc[0]], skipDepth > 0, pm, render))

		tag := doc[loc[0]:loc[1]]
		if m := s.patterns.tagName.FindStringSubmatch(tag); m != nil && skipTextIn[strings.ToLower(m[2])] {
			if m[1] == "/" {
				if skipDepth > 0 {
					skipDepth--
				}
			} else if !strings.HasSuffix(tag, "/>") {
				skipDepth++
			}
		}
		b.WriteString(tag)
		cursor = loc[1]
	}
	b.WriteString(s.rewriteNakedText(doc[cursor:], skipDepth > 0, pm, render))
	return b.String()
}

func (s *Scanner) rewriteNakedText(text string, skip bool, pm *PreserveManager, render RenderFunc) string {
	if skip || !strings.ContainsAny(text, `^_\`) {
		return text
	}

	out, err := s.patterns.naked.ReplaceFunc(text, func(m regexp2.Match) string {
		source := m.String()
		latex := Normalize(source)
		if len([]rune(latex)) < minNakedLength {
			return source
		}
		return pm.Protect(render(MathSpan{
			Latex:   latex,
			Display: IsDisplayMath("", latex),
			Dialect: DialectNaked,
			Source:  source,
		}))
	}, -1, -1)
	if err != nil {
		return text
	}
	return out
}

// replaceSubmatchFunc 与 ReplaceAllStringFunc 相同，但回调拿到的是分组
func replaceSubmatchFunc(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		groups := make([]string, len(m)/2)
		for i := range groups {
			if m[2*i] >= 0 {
				groups[i] = s[m[2*i]:m[2*i+1]]
			}
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(fn(groups))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
