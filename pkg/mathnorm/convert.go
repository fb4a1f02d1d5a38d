package mathnorm

import "strings"

// Converter 纯 Go 的 LaTeX → HTML 近似转换器。
// 不依赖任何外部进程，输出只使用 span/sup/sub/table/div 等基础标签，
// 标签始终成对闭合。零值不可用，请使用 NewConverter。
type Converter struct {
	rules *rules
}

// NewConverter 创建转换器，所有实例共享同一份规则表
func NewConverter() *Converter {
	return &Converter{rules: defaultRules()}
}

// Convert 把一段 LaTeX 转换为 HTML，display 决定外层容器
func (c *Converter) Convert(latex string, display bool) string {
	r := c.rules

	s := r.cleanHTML(latex)
	s = r.protectLiterals(s)
	s = r.convertEnvironments(s)
	s = r.convertTextStyles(s)
	s = r.convertFrac(s)
	s = r.convertSqrt(s)
	s = r.convertScripts(s)
	s = r.replaceSymbols(s)
	s = r.wrapFunctions(s)
	s = r.replaceBrackets(s)
	s = r.cleanSpacing(s)
	s = r.stripCommands(s)
	s = stripBraces(s)
	s = strings.TrimSpace(r.multiSpace.ReplaceAllString(s, " "))
	s = r.outputEscaper.Replace(s)

	return wrapMath(s, display)
}

// wrapMath 用语义类名包裹公式输出
func wrapMath(body string, display bool) string {
	if display {
		return `<div class="math-display">` + body + `</div>`
	}
	return `<span class="math-inline">` + body + `</span>`
}

// convertTextStyles \textbf{..} 等样式命令，只处理不含嵌套花括号的参数。
// 跑两轮，使 \textbf{\text{x}} 这类两层写法也能展开。
// 参数中的标签不成对时保留原文。
func (r *rules) convertTextStyles(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	for pass := 0; pass < 2; pass++ {
		for _, rule := range r.styleRules {
			s = rule.pattern.ReplaceAllStringFunc(s, func(m string) string {
				if !r.tagsBalanced(rule.pattern.FindStringSubmatch(m)[1]) {
					return m
				}
				return rule.pattern.ReplaceAllString(m, rule.replacement)
			})
		}
	}
	return s
}

// convertScripts 上下标：先处理 ^{..} / _{..}，再处理单字符和单个符号命令
func (r *rules) convertScripts(s string) string {
	s = r.convertGroupScripts(s, '^', "sup")
	s = r.convertGroupScripts(s, '_', "sub")

	s = r.powerCommand.ReplaceAllStringFunc(s, func(m string) string {
		if glyph, ok := r.symbols[m[2:]]; ok {
			return "<sup>" + glyph + "</sup>"
		}
		return m
	})
	s = r.indexCommand.ReplaceAllStringFunc(s, func(m string) string {
		if glyph, ok := r.symbols[m[2:]]; ok {
			return "<sub>" + glyph + "</sub>"
		}
		return m
	})

	s = r.powerSingle.ReplaceAllString(s, `<sup>${1}</sup>`)
	s = r.indexSingle.ReplaceAllString(s, `<sub>${1}</sub>`)
	return s
}

// convertGroupScripts 把 marker{..} 换成 <tag>..</tag>，参数用平衡花括号提取
func (r *rules) convertGroupScripts(s string, marker byte, tag string) string {
	if strings.IndexByte(s, marker) < 0 {
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		idx := strings.IndexByte(s[i:], marker)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		pos := i + idx
		b.WriteString(s[i:pos])

		inner, end, ok := balancedGroup(s, skipSpaces(s, pos+1))
		if !ok || !r.tagsBalanced(inner) {
			b.WriteByte(marker)
			i = pos + 1
			continue
		}

		b.WriteString("<" + tag + ">")
		b.WriteString(r.convertGroupScripts(inner, marker, tag))
		b.WriteString("</" + tag + ">")
		i = end
	}
	return b.String()
}

// replaceSymbols 按完整的控制词替换符号，\le 不会吃掉 \left
func (r *rules) replaceSymbols(s string) string {
	return r.command.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1:]
		if glyph, ok := r.symbols[name]; ok {
			return glyph
		}
		if glyph, ok := r.punct[name]; ok {
			return glyph
		}
		return tok
	})
}

// wrapFunctions \sin、\log 等 → 正体 span
func (r *rules) wrapFunctions(s string) string {
	return r.command.ReplaceAllStringFunc(s, func(tok string) string {
		if name := tok[1:]; r.functions[name] {
			return `<span class="mf">` + name + `</span>`
		}
		return tok
	})
}

// replaceBrackets 去掉 \left \right 等尺寸命令，替换括号类命令
func (r *rules) replaceBrackets(s string) string {
	s = r.commandDot.ReplaceAllStringFunc(s, func(m string) string {
		sub := r.commandDot.FindStringSubmatch(m)
		name := sub[1]
		switch name {
		case "left", "right", "big", "Big", "bigg", "Bigg",
			"bigl", "bigr", "Bigl", "Bigr", "biggl", "biggr", "Biggl", "Biggr":
			// \left. 这种空定界符连同句点一起删除
			return ""
		}
		if glyph, ok := r.brackets[name]; ok {
			return glyph + sub[2]
		}
		return m
	})
	return r.command.ReplaceAllStringFunc(s, func(tok string) string {
		if tok == `\|` {
			return "‖"
		}
		return tok
	})
}

// cleanSpacing 间距命令 → 细空格，样式开关直接删除，\\ → 空格
func (r *rules) cleanSpacing(s string) string {
	return r.command.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1:]
		switch {
		case r.thinSpaces[name]:
			return thinSpace
		case r.styles[name]:
			return ""
		case name == `\`:
			return " "
		}
		return tok
	})
}

// stripCommands 删除剩余的未知控制词，单字符转义只保留字符本身
func (r *rules) stripCommands(s string) string {
	return r.command.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1:]
		if isLetter(name[0]) {
			return ""
		}
		return name
	})
}
