package typeset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout 单次渲染的硬超时
const DefaultTimeout = 5 * time.Second

// NodeConfig 子进程引擎配置
type NodeConfig struct {
	Executable string        // 可执行文件，例如 node
	Script     string        // 渲染脚本路径
	Timeout    time.Duration // 单次渲染超时
}

// renderRequest 写入子进程标准输入的 JSON
type renderRequest struct {
	Latex   string `json:"latex"`
	Display bool   `json:"display"`
}

// NodeTypesetter 通过 `<executable> <script>` 子进程渲染公式
//
// 可用性只在构造时检查一次；不可用时整个进程生命周期内都不再尝试。
type NodeTypesetter struct {
	name       string
	executable string
	script     string
	timeout    time.Duration
	available  bool
	reason     string
	logger     *zap.Logger
}

// NewNodeTypesetter 创建子进程排版引擎
func NewNodeTypesetter(cfg NodeConfig, logger *zap.Logger) *NodeTypesetter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	t := &NodeTypesetter{
		name:    fmt.Sprintf("external-%s", cfg.Executable),
		script:  cfg.Script,
		timeout: cfg.Timeout,
		logger:  logger,
	}

	// 检查命令是否存在
	executable, err := exec.LookPath(cfg.Executable)
	if err != nil {
		t.reason = fmt.Sprintf("command not found: %s", cfg.Executable)
		logger.Info("外部排版引擎不可用，将使用 HTML 近似渲染", zap.String("reason", t.reason))
		return t
	}
	t.executable = executable

	// 检查渲染脚本是否存在
	info, err := os.Stat(cfg.Script)
	if err != nil || info.IsDir() {
		t.reason = fmt.Sprintf("render script not found: %s", cfg.Script)
		logger.Info("外部排版引擎不可用，将使用 HTML 近似渲染", zap.String("reason", t.reason))
		return t
	}

	t.available = true
	logger.Debug("外部排版引擎可用",
		zap.String("executable", executable),
		zap.String("script", cfg.Script),
		zap.Duration("timeout", cfg.Timeout))
	return t
}

// Available 返回引擎是否可用
func (t *NodeTypesetter) Available() bool {
	return t.available
}

// Reason 返回不可用的原因
func (t *NodeTypesetter) Reason() string {
	return t.reason
}

// Name 返回名称
func (t *NodeTypesetter) Name() string {
	return t.name
}

// Executable 返回解析后的可执行文件路径
func (t *NodeTypesetter) Executable() string {
	return t.executable
}

// Script 返回渲染脚本路径
func (t *NodeTypesetter) Script() string {
	return t.script
}

// Render 启动子进程渲染公式
func (t *NodeTypesetter) Render(ctx context.Context, latex string, display bool) (string, error) {
	if !t.available {
		return "", &TypesetError{Engine: t.name, Reason: t.reason, Err: ErrUnavailable}
	}

	payload, err := json.Marshal(renderRequest{Latex: latex, Display: display})
	if err != nil {
		return "", &TypesetError{Engine: t.name, Reason: "failed to encode request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.executable, t.script)
	cmd.Stdin = bytes.NewReader(payload)
	// 子进程被杀后不再等待仍占用管道的孙进程
	cmd.WaitDelay = 500 * time.Millisecond

	// 捕获输出
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TypesetError{
				Engine: t.name,
				Reason: fmt.Sprintf("no result within %s", t.timeout),
				Err:    ErrTimeout,
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &TypesetError{Engine: t.name, Reason: "render canceled", Err: ctxErr}
		}
		return "", &TypesetError{
			Engine: t.name,
			Reason: fmt.Sprintf("command failed: %s", strings.TrimSpace(stderr.String())),
			Err:    err,
		}
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", &TypesetError{Engine: t.name, Reason: "empty stdout", Err: ErrEmptyOutput}
	}
	if !strings.HasPrefix(out, "<") {
		return "", &TypesetError{Engine: t.name, Reason: "output is not markup", Err: ErrMalformedOutput}
	}
	return out, nil
}
