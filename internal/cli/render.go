package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nerdneilsfield/go-mathnorm/internal/stats"
	"github.com/nerdneilsfield/go-mathnorm/pkg/markdown"
	"github.com/nerdneilsfield/go-mathnorm/pkg/mathnorm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// renderOptions render 子命令的标志
type renderOptions struct {
	pdf        bool
	browser    bool
	markdown   bool
	standalone bool
	output     string
	stats      bool
}

// NewRenderCommand 创建 render 子命令
func NewRenderCommand() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "渲染文档中的公式并输出 HTML",
		Long: `读取 HTML（或 Markdown）文档，替换其中的所有公式后输出。
不指定文件或文件为 "-" 时从标准输入读取。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.pdf, "pdf", false, "为 PDF 输出渲染（不使用 currentColor，表格走近似转换）")
	cmd.Flags().BoolVar(&opts.browser, "browser", false, "输出交给浏览器端 MathJax 排版的占位符")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "把输入视为 Markdown（.md 文件自动启用）")
	cmd.Flags().BoolVar(&opts.standalone, "standalone", false, "输出带样式表的完整 HTML 页面")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "输出文件（默认标准输出）")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "在标准错误输出渲染统计")
	return cmd
}

func runRender(cmd *cobra.Command, args []string, opts *renderOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = env.log.Sync() }()

	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	title := "mathnorm"
	if len(args) == 1 && args[0] != "-" {
		title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	doc := string(input)
	if opts.markdown || isMarkdownFile(args) {
		converted, err := markdown.NewConverter().Convert(input)
		if err != nil {
			return fmt.Errorf("convert markdown: %w", err)
		}
		doc = converted.HTML
		if t, ok := converted.Meta["title"].(string); ok && t != "" {
			title = t
		}
	}

	target := mathnorm.RenderTarget{ForPDF: opts.pdf, ForBrowser: opts.browser}
	env.log.Debug("rendering document",
		zap.String("target", target.String()),
		zap.Int("bytes", len(doc)),
		zap.Bool("engine", env.processor.EngineAvailable()))

	spans := env.processor.Scan(doc)
	start := time.Now()
	out := env.processor.Process(cmd.Context(), doc, target)
	elapsed := time.Since(start)

	if opts.standalone {
		out = mathnorm.Page(title, out, target)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.output, err)
		}
		env.log.Info("document written", zap.String("path", opts.output))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), out)
	}

	inputs := []string{"-"}
	if len(args) == 1 {
		inputs = args
	}
	env.recordHistory(&stats.RunRecord{
		ID:          uuid.New().String(),
		Timestamp:   start,
		Inputs:      inputs,
		Target:      target.String(),
		Engine:      env.processor.EngineAvailable(),
		Documents:   1,
		Formulas:    len(spans),
		InputBytes:  int64(len(doc)),
		OutputBytes: int64(len(out)),
		Duration:    elapsed,
	})

	if opts.stats {
		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.ErrOrStderr())
		tw.AppendHeader(table.Row{"项目", "值"})
		tw.AppendRow(table.Row{"目标", target.String()})
		tw.AppendRow(table.Row{"公式数", len(spans)})
		tw.AppendRow(table.Row{"排版引擎", availability(env.processor.EngineAvailable())})
		tw.AppendRow(table.Row{"输入字节", len(doc)})
		tw.AppendRow(table.Row{"输出字节", len(out)})
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"耗时", elapsed.Round(time.Microsecond).String()})
		tw.SetStyle(table.StyleLight)
		tw.Render()
	}
	return nil
}

func isMarkdownFile(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch strings.ToLower(filepath.Ext(args[0])) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
