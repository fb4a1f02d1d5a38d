// Package batch 并发渲染一组文件并汇总结果。
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nerdneilsfield/go-mathnorm/pkg/markdown"
	"github.com/nerdneilsfield/go-mathnorm/pkg/mathnorm"
	"github.com/nerdneilsfield/go-mathnorm/pkg/progress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency 默认同时处理的文档数
const DefaultConcurrency = 4

// 预定义错误
var (
	// ErrNoInputs 没有找到可处理的文件
	ErrNoInputs = errors.New("no input documents")

	// ErrOverwrite 输出路径与输入相同
	ErrOverwrite = errors.New("output would overwrite input")
)

// inputExtensions 目录遍历时收集的扩展名
var inputExtensions = map[string]bool{
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
}

// Processor 批量渲染依赖的处理器能力
type Processor interface {
	Process(ctx context.Context, doc string, target mathnorm.RenderTarget) string
	Scan(doc string) []mathnorm.MathSpan
}

// Job 一个待渲染的文档
type Job struct {
	Input  string
	Output string
}

// Result 单个文档的渲染结果
type Result struct {
	Job         Job
	Formulas    int
	InputBytes  int64
	OutputBytes int64
	Duration    time.Duration
	Err         error
}

// Report 一次批量渲染的汇总
type Report struct {
	ID        string
	Target    mathnorm.RenderTarget
	StartTime time.Time
	Duration  time.Duration
	Results   []Result
}

// Failed 失败的文档数
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Formulas 成功文档中的公式总数
func (r *Report) Formulas() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n += res.Formulas
		}
	}
	return n
}

// Bytes 输入与输出字节数
func (r *Report) Bytes() (in, out int64) {
	for _, res := range r.Results {
		in += res.InputBytes
		out += res.OutputBytes
	}
	return in, out
}

// Errors 合并所有文档的错误，没有失败时为 nil
func (r *Report) Errors() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Options 批量渲染选项
type Options struct {
	Target      mathnorm.RenderTarget
	Concurrency int
	Markdown    bool // 所有输入都按 Markdown 处理
	Standalone  bool // 输出完整页面
	Tracker     *progress.Tracker
}

// Runner 批量渲染器
type Runner struct {
	processor Processor
	markdown  *markdown.Converter
	opts      Options
	logger    *zap.Logger
}

// NewRunner 创建批量渲染器
func NewRunner(processor Processor, opts Options, logger *zap.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		processor: processor,
		markdown:  markdown.NewConverter(),
		opts:      opts,
		logger:    logger,
	}
}

// Plan 把文件和目录展开为任务。目录中的文件保持相对路径写入 outDir，扩展名统一为 .html。
func Plan(inputs []string, outDir string) ([]Job, error) {
	var jobs []Job
	seen := make(map[string]bool)

	add := func(input, rel string) error {
		output := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".html")
		if sameFile(input, output) {
			return fmt.Errorf("%s: %w", input, ErrOverwrite)
		}
		if seen[output] {
			return fmt.Errorf("%s: duplicate output %s", input, output)
		}
		seen[output] = true
		jobs = append(jobs, Job{Input: input, Output: output})
		return nil
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", input, err)
		}
		if !info.IsDir() {
			if err := add(input, filepath.Base(input)); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !inputExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			rel, err := filepath.Rel(input, path)
			if err != nil {
				return err
			}
			return add(path, rel)
		})
		if err != nil {
			return nil, err
		}
	}

	if len(jobs) == 0 {
		return nil, ErrNoInputs
	}
	return jobs, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// Run 并发处理所有任务。单个文档失败不会中断其他文档，
// 只有 ctx 被取消时返回错误。
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Report, error) {
	report := &Report{
		ID:        uuid.New().String(),
		Target:    r.opts.Target,
		StartTime: time.Now(),
		Results:   make([]Result, len(jobs)),
	}

	r.logger.Info("starting batch render",
		zap.String("run", report.ID),
		zap.Int("documents", len(jobs)),
		zap.Int("concurrency", r.opts.Concurrency),
		zap.String("target", r.opts.Target.String()))

	if r.opts.Tracker != nil {
		r.opts.Tracker.Start()
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := r.renderOne(ctx, job)
			if res.Err != nil {
				r.logger.Warn("document failed",
					zap.String("input", job.Input),
					zap.Error(res.Err))
			}

			mu.Lock()
			report.Results[i] = res
			mu.Unlock()

			if r.opts.Tracker != nil {
				r.opts.Tracker.SetMessage(filepath.Base(job.Input))
				r.opts.Tracker.Increment(res.Err != nil)
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(report.StartTime)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch %s interrupted: %w", report.ID, err)
	}

	r.logger.Info("batch render finished",
		zap.String("run", report.ID),
		zap.Int("failed", report.Failed()),
		zap.Int("formulas", report.Formulas()),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// renderOne 读取、渲染并写出一个文档
func (r *Runner) renderOne(ctx context.Context, job Job) Result {
	start := time.Now()
	res := Result{Job: job}

	input, err := os.ReadFile(job.Input)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", job.Input, err)
		return res
	}
	res.InputBytes = int64(len(input))

	doc := string(input)
	title := strings.TrimSuffix(filepath.Base(job.Input), filepath.Ext(job.Input))
	if r.opts.Markdown || isMarkdown(job.Input) {
		converted, err := r.markdown.Convert(input)
		if err != nil {
			res.Err = fmt.Errorf("convert %s: %w", job.Input, err)
			return res
		}
		doc = converted.HTML
		if t, ok := converted.Meta["title"].(string); ok && t != "" {
			title = t
		}
	}

	res.Formulas = len(r.processor.Scan(doc))
	out := r.processor.Process(ctx, doc, r.opts.Target)
	if r.opts.Standalone {
		out = mathnorm.Page(title, out, r.opts.Target)
	}

	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		res.Err = fmt.Errorf("create output directory: %w", err)
		return res
	}
	if err := os.WriteFile(job.Output, []byte(out), 0o644); err != nil {
		res.Err = fmt.Errorf("write %s: %w", job.Output, err)
		return res
	}

	res.OutputBytes = int64(len(out))
	res.Duration = time.Since(start)
	return res
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
