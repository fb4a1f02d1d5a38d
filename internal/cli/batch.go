package cli

import (
	"fmt"
	"time"

	"github.com/nerdneilsfield/go-mathnorm/internal/batch"
	"github.com/nerdneilsfield/go-mathnorm/internal/stats"
	"github.com/nerdneilsfield/go-mathnorm/pkg/mathnorm"
	"github.com/nerdneilsfield/go-mathnorm/pkg/progress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// batchOptions batch 子命令的标志
type batchOptions struct {
	outDir      string
	concurrency int
	pdf         bool
	browser     bool
	markdown    bool
	standalone  bool
	quiet       bool
}

// NewBatchCommand 创建 batch 子命令
func NewBatchCommand() *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <file|dir>...",
		Short: "并发渲染多个文件或目录",
		Long: `渲染给定的文件，目录会被递归遍历（.html、.htm、.md、.markdown）。
输出写入 --out-dir，保持相对路径，扩展名统一为 .html。`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "rendered", "输出目录")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "同时处理的文档数（默认取 batch.concurrency）")
	cmd.Flags().BoolVar(&opts.pdf, "pdf", false, "为 PDF 输出渲染")
	cmd.Flags().BoolVar(&opts.browser, "browser", false, "输出浏览器占位符")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "所有输入都按 Markdown 处理")
	cmd.Flags().BoolVar(&opts.standalone, "standalone", false, "输出带样式表的完整页面")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "不显示进度条和汇总表格")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string, opts *batchOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = env.log.Sync() }()

	jobs, err := batch.Plan(args, opts.outDir)
	if err != nil {
		return err
	}

	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = env.cfg.Batch.Concurrency
	}

	var tracker *progress.Tracker
	if !opts.quiet {
		tracker = progress.NewTracker(int64(len(jobs)),
			progress.WithWriter(cmd.ErrOrStderr()),
			progress.WithRefreshInterval(500*time.Millisecond))
	}

	target := mathnorm.RenderTarget{ForPDF: opts.pdf, ForBrowser: opts.browser}
	runner := batch.NewRunner(env.processor, batch.Options{
		Target:      target,
		Concurrency: concurrency,
		Markdown:    opts.markdown,
		Standalone:  opts.standalone,
		Tracker:     tracker,
	}, env.log)

	report, runErr := runner.Run(cmd.Context(), jobs)
	in, out := report.Bytes()
	cacheStats := env.processor.Stats()

	if tracker != nil {
		tracker.Done(&progress.Summary{
			RunID:       report.ID,
			Target:      target.String(),
			Documents:   len(jobs),
			Failed:      report.Failed(),
			Formulas:    report.Formulas(),
			InputBytes:  in,
			OutputBytes: out,
			TotalTime:   report.Duration,
			Engine:      env.processor.EngineAvailable(),
			CacheHits:   cacheStats.Hits,
			CacheMisses: cacheStats.Misses,
		})
	}

	record := &stats.RunRecord{
		ID:          report.ID,
		Timestamp:   report.StartTime,
		Inputs:      args,
		OutputDir:   opts.outDir,
		Target:      target.String(),
		Engine:      env.processor.EngineAvailable(),
		Documents:   len(jobs),
		Failed:      report.Failed(),
		Formulas:    report.Formulas(),
		InputBytes:  in,
		OutputBytes: out,
		Duration:    report.Duration,
	}
	if errs := report.Errors(); errs != nil {
		record.ErrorMessage = errs.Error()
	}
	if runErr != nil {
		record.Status = stats.StatusFailed
		record.ErrorMessage = runErr.Error()
	}
	env.recordHistory(record)

	if runErr != nil {
		return runErr
	}
	if failed := report.Failed(); failed > 0 {
		env.log.Warn("some documents failed", zap.Int("failed", failed), zap.Error(report.Errors()))
		return fmt.Errorf("%d of %d documents failed", failed, len(jobs))
	}
	return nil
}
