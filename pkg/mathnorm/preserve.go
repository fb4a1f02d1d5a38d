package mathnorm

import (
	"regexp"
	"strconv"
	"strings"
)

// 占位符使用私有区字符包裹编号，正文中几乎不可能出现，
// 也不会被后续各轮的定界符正则匹配到。
const (
	placeholderPrefix = "\uE000"
	placeholderSuffix = "\uE001"
)

var placeholderPattern = regexp.MustCompile(`\x{E000}([0-9]+)\x{E001}`)

// PreserveManager 保护块管理器。已经渲染好的片段换成占位符，
// 后续的扫描轮次看不到其内容，全部扫描结束后再统一还原。
//
// 每次处理文档使用独立的实例，不需要加锁。
type PreserveManager struct {
	// 已保护的内容，下标即占位符编号
	replacements []string
}

// NewPreserveManager 创建保护块管理器
func NewPreserveManager() *PreserveManager {
	return &PreserveManager{}
}

// Protect 保护指定内容，返回占位符
func (pm *PreserveManager) Protect(content string) string {
	placeholder := placeholderPrefix + strconv.Itoa(len(pm.replacements)) + placeholderSuffix
	pm.replacements = append(pm.replacements, content)
	return placeholder
}

// Restore 还原所有占位符。被保护的内容里可能还嵌着更早的占位符，
// 所以反复替换直到没有可还原的为止。
func (pm *PreserveManager) Restore(text string) string {
	for round := 0; round <= len(pm.replacements); round++ {
		if !strings.Contains(text, placeholderPrefix) {
			break
		}

		changed := false
		text = placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
			n, err := strconv.Atoi(m[len(placeholderPrefix) : len(m)-len(placeholderSuffix)])
			if err != nil || n >= len(pm.replacements) {
				return m
			}
			changed = true
			return pm.replacements[n]
		})
		if !changed {
			break
		}
	}
	return text
}
