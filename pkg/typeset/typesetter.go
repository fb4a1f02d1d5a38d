// Package typeset 封装外部数学排版引擎（LaTeX → SVG）的调用。
//
// 引擎是一个阻塞、可能失败的子进程；调用方只通过 Typesetter 接口访问它，
// 测试中可以替换为假实现。
package typeset

import (
	"context"
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrUnavailable 引擎不可用（可执行文件或渲染脚本缺失）
	ErrUnavailable = errors.New("typesetting engine unavailable")

	// ErrTimeout 渲染超时
	ErrTimeout = errors.New("typesetting engine timeout")

	// ErrEmptyOutput 引擎没有输出
	ErrEmptyOutput = errors.New("typesetting engine produced no output")

	// ErrMalformedOutput 引擎输出不是标记
	ErrMalformedOutput = errors.New("typesetting engine produced malformed output")
)

// Typesetter 外部排版引擎接口
type Typesetter interface {
	// Render 把 LaTeX 渲染为矢量图标记（通常是 SVG）
	Render(ctx context.Context, latex string, display bool) (string, error)
}

// Availability 可选接口：引擎在启动时确定自己是否可用
type Availability interface {
	Available() bool
}

// IsAvailable 判断引擎是否可用；没有实现 Availability 的引擎视为可用
func IsAvailable(t Typesetter) bool {
	if t == nil {
		return false
	}
	if a, ok := t.(Availability); ok {
		return a.Available()
	}
	return true
}

// TypesetError 排版错误
type TypesetError struct {
	Engine string
	Reason string
	Err    error
}

// Error 实现error接口
func (e *TypesetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("typeset %s: %s: %v", e.Engine, e.Reason, e.Err)
	}
	return fmt.Sprintf("typeset %s: %s", e.Engine, e.Reason)
}

// Unwrap 返回原因错误
func (e *TypesetError) Unwrap() error {
	return e.Err
}
