package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// 命令行标志变量
	cfgFile   string
	debugMode bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mathnorm",
		Short: "把题目 HTML 中的 LaTeX 公式规范化为可直接展示的 HTML",
		Long: `mathnorm 在 HTML 文档中查找各种写法的 LaTeX 公式并替换为渲染结果。

支持的写法:
  - TipTap / ProseMirror 公式节点 (data-type="math")
  - CKEditor 公式节点 (class="math-tex")
  - \[...\]、$$...$$、\(...\)、$...$ 定界符
  - 正文中未加定界符的 LaTeX 片段

渲染路径:
  - 外部排版引擎 (node + MathJax)，输出 SVG
  - 纯 Go 近似转换器，用于 PDF 或引擎不可用时
  - 浏览器占位符，交给客户端排版`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认查找 $HOME/.mathnorm.yaml 与 ./.mathnorm.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "输出调试日志")

	rootCmd.AddCommand(
		NewRenderCommand(),
		NewBatchCommand(),
		NewScanCommand(),
		NewCheckCommand(),
		NewCSSCommand(),
		NewConfigCommand(),
		NewHistoryCommand(),
	)
	return rootCmd
}
