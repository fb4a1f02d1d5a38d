package cli

import (
	"fmt"

	"github.com/nerdneilsfield/go-mathnorm/pkg/mathnorm"
	"github.com/spf13/cobra"
)

// NewCSSCommand 创建 css 子命令
func NewCSSCommand() *cobra.Command {
	var tag bool

	cmd := &cobra.Command{
		Use:   "css",
		Short: "输出渲染结果依赖的样式表",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if tag {
				fmt.Fprintln(cmd.OutOrStdout(), mathnorm.StyleTag())
				return
			}
			fmt.Fprint(cmd.OutOrStdout(), mathnorm.Stylesheet)
		},
	}

	cmd.Flags().BoolVar(&tag, "tag", false, "包在 <style> 标签中输出")
	return cmd
}
