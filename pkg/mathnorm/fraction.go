package mathnorm

import "strings"

var fracCommands = []string{`\dfrac`, `\tfrac`, `\frac`}

// convertFrac 把 \frac{A}{B}、\dfrac{A}{B} 转为分数 span，并递归处理 A、B 中的分数。
// 命令后没有两个闭合的参数组时保留命令原文。
func (r *rules) convertFrac(text string) string {
	if !strings.Contains(text, "frac") {
		return text
	}

	var b strings.Builder
	i := 0
	for i < len(text) {
		start, n := nextCommand(text, i, fracCommands...)
		if start < 0 {
			b.WriteString(text[i:])
			break
		}
		b.WriteString(text[i:start])

		j := skipSpaces(text, start+n)
		num, j, ok := balancedGroup(text, j)
		if ok {
			k := skipSpaces(text, j)
			den, end, ok := balancedGroup(text, k)
			if ok && r.tagsBalanced(num) && r.tagsBalanced(den) {
				b.WriteString(`<span class="frac"><span class="num">`)
				b.WriteString(r.convertFrac(num))
				b.WriteString(`</span><span class="den">`)
				b.WriteString(r.convertFrac(den))
				b.WriteString(`</span></span>`)
				i = end
				continue
			}
		}

		b.WriteString(text[start : start+n])
		i = start + n
	}
	return b.String()
}

// convertSqrt 把 \sqrt[n]{A} 与 \sqrt{A} 转为根号，次数写成上标。
// 后面没有 '{' 或参数没有闭合的 \sqrt 原样保留。
func (r *rules) convertSqrt(text string) string {
	if !strings.Contains(text, `\sqrt`) {
		return text
	}

	var b strings.Builder
	i := 0
	for i < len(text) {
		start, n := nextCommand(text, i, `\sqrt`)
		if start < 0 {
			b.WriteString(text[i:])
			break
		}
		b.WriteString(text[i:start])

		j := start + n
		degree := ""
		if j < len(text) && text[j] == '[' {
			if end := strings.IndexByte(text[j:], ']'); end >= 0 {
				degree = strings.TrimSpace(text[j+1 : j+end])
				j += end + 1
			}
		}
		j = skipSpaces(text, j)

		arg, end, ok := balancedGroup(text, j)
		if !ok || !r.tagsBalanced(arg) || !r.tagsBalanced(degree) {
			b.WriteString(text[start:j])
			i = j
			continue
		}

		if degree != "" {
			b.WriteString("<sup>" + degree + "</sup>")
		}
		b.WriteString(`√<span class="sqrt-arg">`)
		b.WriteString(r.convertSqrt(arg))
		b.WriteString(`</span>`)
		i = end
	}
	return b.String()
}
