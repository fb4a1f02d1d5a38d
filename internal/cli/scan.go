package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nerdneilsfield/go-mathnorm/pkg/markdown"
	"github.com/spf13/cobra"
)

// NewScanCommand 创建 scan 子命令
func NewScanCommand() *cobra.Command {
	var markdownInput bool

	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "列出文档中识别到的公式，不做渲染",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = env.log.Sync() }()

			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			doc := string(input)
			if markdownInput || isMarkdownFile(args) {
				converted, err := markdown.NewConverter().Convert(input)
				if err != nil {
					return fmt.Errorf("convert markdown: %w", err)
				}
				doc = converted.HTML
			}

			spans := env.processor.Scan(doc)
			w := cmd.OutOrStdout()
			if len(spans) == 0 {
				fmt.Fprintln(w, "未发现公式")
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(w)
			tw.AppendHeader(table.Row{"#", "写法", "显示", "LaTeX"})
			for i, span := range spans {
				mode := "inline"
				if span.Display {
					mode = "display"
				}
				tw.AppendRow(table.Row{i + 1, span.Dialect.String(), mode, span.Latex})
			}
			tw.AppendSeparator()
			tw.AppendFooter(table.Row{"", "", "合计", len(spans)})
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&markdownInput, "markdown", false, "把输入视为 Markdown（.md 文件自动启用）")
	return cmd
}
