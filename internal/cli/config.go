package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/nerdneilsfield/go-mathnorm/internal/config"
	"github.com/spf13/cobra"
)

// NewConfigCommand 创建 config 子命令
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand(), newConfigGetCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "写出一份默认配置（默认 $HOME/.mathnorm.yaml）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if path != "" && !force && fileExists(path) {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.SaveConfig(config.NewDefaultConfig(), path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			if path == "" {
				path = "$HOME/.mathnorm.yaml"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "配置已写入 %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的文件")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "显示生效的配置（文件、环境变量与默认值合并后）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			values := config.Values(cfg)

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"配置项", "值"})
			for _, key := range sortedKeys(values) {
				tw.AppendRow(table.Row{key, values[key]})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "输出单个配置项的值",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			values := config.Values(cfg)

			key := args[0]
			value, ok := values[key]
			if !ok {
				if suggestions := suggestKeys(key, sortedKeys(values)); len(suggestions) > 0 {
					return fmt.Errorf("unknown key %q, did you mean: %s", key, strings.Join(suggestions, ", "))
				}
				return fmt.Errorf("unknown key %q", key)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

// suggestKeys 按编辑距离返回最接近的几个配置项
func suggestKeys(key string, keys []string) []string {
	ranks := fuzzy.RankFindFold(key, keys)
	sort.Sort(ranks)

	suggestions := make([]string, 0, 3)
	for _, rank := range ranks {
		if len(suggestions) == 3 {
			break
		}
		suggestions = append(suggestions, rank.Target)
	}
	return suggestions
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
