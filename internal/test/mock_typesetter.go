package test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// MockTypesetter 是一个模拟的排版引擎实现
type MockTypesetter struct {
	mock.Mock
}

// Render 实现排版引擎的Render方法
func (m *MockTypesetter) Render(ctx context.Context, latex string, display bool) (string, error) {
	args := m.Called(ctx, latex, display)
	return args.String(0), args.Error(1)
}

// Available 实现可用性检查
func (m *MockTypesetter) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

// CountingTypesetter 记录调用次数的假引擎，输出固定格式的 SVG
type CountingTypesetter struct {
	// Fail 不为 nil 时每次调用都返回该错误
	Fail error
	// Color 为 true 时输出带 currentColor 的 SVG
	Color bool

	calls atomic.Int64
	mu    sync.Mutex
	seen  []string
}

// Render 返回伪造的 SVG
func (c *CountingTypesetter) Render(_ context.Context, latex string, display bool) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.seen = append(c.seen, latex)
	c.mu.Unlock()

	if c.Fail != nil {
		return "", c.Fail
	}

	mode := "inline"
	if display {
		mode = "display"
	}
	fill := "#333"
	if c.Color {
		fill = "currentColor"
	}
	return `<svg data-mode="` + mode + `" fill="` + fill + `" stroke='` + fill + `'><title>` +
		strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;").Replace(latex) +
		`</title></svg>`, nil
}

// Available 假引擎总是可用
func (c *CountingTypesetter) Available() bool {
	return true
}

// Calls 返回调用次数
func (c *CountingTypesetter) Calls() int {
	return int(c.calls.Load())
}

// Seen 返回收到的全部 LaTeX
func (c *CountingTypesetter) Seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}
