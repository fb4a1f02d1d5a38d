package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// probeLatex 引擎自检使用的公式
const probeLatex = `\frac{1}{2}`

// NewCheckCommand 创建 check 子命令
func NewCheckCommand() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "检查排版引擎是否可用并显示当前配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = env.log.Sync() }()

			w := cmd.OutOrStdout()
			green := color.New(color.FgGreen, color.Bold)
			yellow := color.New(color.FgYellow, color.Bold)
			red := color.New(color.FgRed, color.Bold)

			switch {
			case env.cfg.Engine.Disabled:
				yellow.Fprintln(w, "排版引擎已在配置中禁用 (engine disabled)，使用近似转换")
			case env.node.Available():
				green.Fprintf(w, "排版引擎可用 (engine available): %s\n", env.node.Name())
				fmt.Fprintf(w, "  可执行文件: %s\n  渲染脚本: %s\n", env.node.Executable(), env.node.Script())
			default:
				yellow.Fprintf(w, "排版引擎不可用 (engine unavailable): %s\n", env.node.Reason())
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(w)
			tw.AppendHeader(table.Row{"配置项", "值"})
			tw.AppendRow(table.Row{"engine.executable", env.cfg.Engine.Executable})
			tw.AppendRow(table.Row{"engine.script", env.cfg.Engine.Script})
			tw.AppendRow(table.Row{"engine.timeout", env.cfg.Engine.Timeout.String()})
			tw.AppendRow(table.Row{"engine.disabled", env.cfg.Engine.Disabled})
			tw.AppendSeparator()
			tw.AppendRow(table.Row{"cache.render_size", env.cfg.Cache.RenderSize})
			tw.AppendRow(table.Row{"cache.document_size", env.cfg.Cache.DocumentSize})
			tw.AppendRow(table.Row{"cache.render_dir", env.cfg.Cache.RenderDir})
			tw.AppendSeparator()
			tw.AppendRow(table.Row{"scanner.naked_latex", env.cfg.Scanner.NakedLatex})
			tw.AppendRow(table.Row{"scanner.dollar_delimiters", env.cfg.Scanner.DollarDelimiters})
			tw.SetStyle(table.StyleLight)
			tw.Render()

			if !probe || env.node == nil || !env.node.Available() {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), env.cfg.Engine.Timeout+time.Second)
			defer cancel()
			start := time.Now()
			svg, err := env.node.Render(ctx, probeLatex, false)
			if err != nil {
				red.Fprintf(w, "试渲染失败: %v\n", err)
				env.log.Error("engine probe failed", zap.Error(err))
				return fmt.Errorf("engine probe: %w", err)
			}
			green.Fprintf(w, "试渲染成功: %d 字节, 耗时 %s\n", len(svg), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "用一个简单公式实际调用一次引擎")
	return cmd
}
