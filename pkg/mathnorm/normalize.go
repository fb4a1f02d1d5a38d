package mathnorm

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Normalize 清理嵌在 HTML 中的 LaTeX：解码实体，把 <br> 与换行折叠成空格，
// 使跨行书写的命令（如 \frac{1}\n{125}）能作为一个整体解析。
//
// 纯函数，不会失败。
func Normalize(raw string) string {
	return defaultRules().normalize(raw)
}

func (r *rules) normalize(raw string) string {
	if raw == "" {
		return raw
	}

	s := html.UnescapeString(raw)
	s = r.brTag.ReplaceAllString(s, " ")
	s = r.newlines.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, nbsp, " ")
	s = norm.NFC.String(s)
	s = r.spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// cleanHTML 去掉公式周围的标签噪声，解码实体并折叠空白
func (r *rules) cleanHTML(s string) string {
	s = r.brTag.ReplaceAllString(s, " ")
	s = r.htmlTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = r.newlines.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, nbsp, " ")
	s = r.spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// protectLiterals 把会干扰后续步骤的字面字符换成私有区占位字符
func (r *rules) protectLiterals(s string) string {
	s = strings.NewReplacer("<", sentLT, ">", sentGT).Replace(s)
	return r.escapedChar.ReplaceAllStringFunc(s, func(tok string) string {
		switch tok[1] {
		case '{':
			return sentLBrace
		case '}':
			return sentRBrace
		case '&':
			return sentAmp
		case '_':
			return sentUnder
		case '$':
			return sentDollar
		}
		// `\\` 是换行，原样保留
		return tok
	})
}
