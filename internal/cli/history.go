package cli

import (
	"errors"
	"fmt"

	"github.com/nerdneilsfield/go-mathnorm/internal/stats"
	"github.com/spf13/cobra"
)

// NewHistoryCommand 创建 history 子命令
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "显示渲染历史统计（需要配置 history.path）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = env.log.Sync() }()

			if env.cfg.History.Path == "" {
				return errors.New("history.path is not configured")
			}
			db, err := stats.NewDatabase(env.cfg.History.Path, env.log)
			if err != nil {
				return err
			}
			if env.cfg.Cache.RenderDir != "" {
				if err := db.UpdateCacheStats(env.cfg.Cache.RenderDir); err != nil {
					return err
				}
			}

			v := stats.NewVisualizer(db, cmd.OutOrStdout())
			v.ShowOverview()
			fmt.Fprintln(cmd.OutOrStdout())
			v.ShowTargets()
			fmt.Fprintln(cmd.OutOrStdout())
			v.ShowRecentRuns(limit)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "显示最近多少条记录")
	return cmd
}
