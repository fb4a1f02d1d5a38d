package mathnorm

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// envKind 支持的环境类别
type envKind int

const (
	envTable   envKind = iota // array / tabular
	envCases                  // cases
	envAligned                // aligned / align / gather / equation
)

// rowSpacing 行首的 [2pt] 之类的行距参数
var rowSpacing = regexp.MustCompile(`^\[\s*-?[0-9.]+\s*(?:pt|em|ex|mm|cm|mu)\s*\]`)

// maxEnvPasses 嵌套环境最多展开的层数
const maxEnvPasses = 16

// envPattern 只匹配内部不再包含 \begin 的环境，嵌套的环境由内向外逐层展开。
// 结束标签通过反向引用与开始标签配对。
var envPattern = sync.OnceValue(func() *regexp2.Regexp {
	re := regexp2.MustCompile(
		`\\begin\{(array|tabular|cases|aligned|align\*?|gather\*?|equation\*?)\}((?:(?!\\begin\{).)*?)\\end\{\1\}`,
		regexp2.Singleline,
	)
	re.MatchTimeout = time.Second
	return re
})

// parseEnvKind 环境名 → 类别
func parseEnvKind(name string) (envKind, bool) {
	switch strings.TrimSuffix(name, "*") {
	case "array", "tabular":
		return envTable, true
	case "cases":
		return envCases, true
	case "aligned", "align", "gather", "equation":
		return envAligned, true
	}
	return 0, false
}

// convertEnvironments 展开所有受支持的环境
func (r *rules) convertEnvironments(text string) string {
	if !strings.Contains(text, `\begin`) {
		return text
	}

	re := envPattern()
	for pass := 0; pass < maxEnvPasses; pass++ {
		changed := false
		out, err := re.ReplaceFunc(text, func(m regexp2.Match) string {
			groups := m.Groups()
			kind, ok := parseEnvKind(groups[1].String())
			// 错位的 \begin / \end 会让环境体截断内层已生成的标签，保留原文
			if !ok || !r.tagsBalanced(groups[2].String()) {
				return m.String()
			}
			changed = true
			return r.convertEnvironment(kind, groups[2].String())
		}, -1, -1)
		if err != nil || !changed {
			break
		}
		text = out
	}
	return text
}

func (r *rules) convertEnvironment(kind envKind, body string) string {
	switch kind {
	case envTable:
		return r.convertTable(body)
	case envCases:
		return r.convertCases(body)
	default:
		return r.convertAligned(body)
	}
}

// splitRows 按 \\ 拆分行，去掉 \hline 与空行
func (r *rules) splitRows(body string) []string {
	var rows []string
	for _, row := range r.rowSplit.Split(body, -1) {
		row = strings.ReplaceAll(row, `\hline`, "")
		row = strings.TrimSpace(row)
		// \\[2pt] 的行距参数
		row = strings.TrimSpace(rowSpacing.ReplaceAllString(row, ""))
		if row != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

// convertTable array / tabular → 表格
func (r *rules) convertTable(body string) string {
	body = strings.TrimLeft(body, " ")
	if strings.HasPrefix(body, "{") {
		if spec, end, ok := balancedGroup(body, 0); ok && r.tagsBalanced(spec) {
			body = body[end:]
		}
	}

	var b strings.Builder
	count := 0
	for _, row := range r.splitRows(body) {
		cells := strings.Split(row, "&")
		empty := true
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
			if cells[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		b.WriteString(`<tr class="array-row">`)
		for _, cell := range cells {
			b.WriteString(`<td class="array-cell">` + cell + `</td>`)
		}
		b.WriteString(`</tr>`)
		count++
	}
	if count == 0 {
		return ""
	}
	return `<table class="array-table"><tbody>` + b.String() + `</tbody></table>`
}

// convertCases cases → 左侧一个跨行大括号，右侧每行一个单元格
func (r *rules) convertCases(body string) string {
	var rows []string
	for _, row := range r.splitRows(body) {
		row = strings.TrimSpace(strings.ReplaceAll(row, "&", " "))
		if row != "" {
			rows = append(rows, r.multiSpace.ReplaceAllString(row, " "))
		}
	}
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<table class="cases-table"><tbody><tr>`)
	b.WriteString(`<td class="cases-brace" rowspan="` + strconv.Itoa(len(rows)) + `">` + sentLBrace + `</td>`)
	b.WriteString(`<td><table><tbody>`)
	for _, row := range rows {
		b.WriteString(`<tr><td class="cases-row">` + row + `</td></tr>`)
	}
	b.WriteString(`</tbody></table></td></tr></tbody></table>`)
	return b.String()
}

// convertAligned aligned / align / gather / equation → 按行排列的 div，对齐符换成一个空格
func (r *rules) convertAligned(body string) string {
	var b strings.Builder
	b.WriteString(`<div class="math-env">`)
	for _, row := range r.splitRows(body) {
		row = strings.TrimSpace(strings.ReplaceAll(row, "&", " "))
		if row == "" {
			continue
		}
		row = r.multiSpace.ReplaceAllString(row, " ")
		b.WriteString(`<div class="math-row">` + row + `</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// hasTableEnvironment 判断公式是否包含 array / tabular
func hasTableEnvironment(latex string) bool {
	return strings.Contains(latex, `\begin{array}`) || strings.Contains(latex, `\begin{tabular}`)
}
