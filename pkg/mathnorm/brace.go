package mathnorm

import "strings"

// extractBalanced 从 text[pos] 处的 '{' 开始，返回与之配对的 '}' 之间的内容，
// 以及配对 '}' 之后的位置。
//
// 深度始终按字符计数，不依赖正则。花括号没有闭合时返回剩余全部内容和字符串末尾。
func extractBalanced(text string, pos int) (string, int) {
	inner, end, _ := balancedGroup(text, pos)
	return inner, end
}

// balancedGroup 与 extractBalanced 相同，额外报告分组是否正确闭合
func balancedGroup(text string, pos int) (string, int, bool) {
	if pos < 0 || pos >= len(text) || text[pos] != '{' {
		return "", pos, false
	}

	depth := 0
	for i := pos; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[pos+1 : i], i + 1, true
			}
		}
	}
	return text[pos+1:], len(text), false
}

// skipSpaces 跳过空格
func skipSpaces(text string, i int) int {
	for i < len(text) && text[i] == ' ' {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// nextCommand 查找 from 之后第一个完整匹配的命令（后面不能紧跟字母）
func nextCommand(text string, from int, names ...string) (int, int) {
	start, length := -1, 0
	for _, name := range names {
		off := from
		for off < len(text) {
			idx := strings.Index(text[off:], name)
			if idx < 0 {
				break
			}
			pos := off + idx
			end := pos + len(name)
			if end < len(text) && isLetter(text[end]) {
				off = end
				continue
			}
			if start < 0 || pos < start {
				start, length = pos, len(name)
			}
			break
		}
	}
	return start, length
}

// voidElements 没有结束标签的元素
var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "wbr": true, "input": true, "meta": true, "link": true,
}

// tagsBalanced 判断片段中的标签是否成对出现
func (r *rules) tagsBalanced(s string) bool {
	if !strings.Contains(s, "<") {
		return true
	}

	var stack []string
	for _, m := range r.anyTag.FindAllStringSubmatch(s, -1) {
		name := strings.ToLower(m[2])
		if m[3] == "/" || voidElements[name] {
			continue
		}
		if m[1] == "/" {
			if len(stack) == 0 || stack[len(stack)-1] != name {
				return false
			}
			stack = stack[:len(stack)-1]
			continue
		}
		stack = append(stack, name)
	}
	return len(stack) == 0
}

// stripBraces 删除剩余的结构性花括号
func stripBraces(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}
