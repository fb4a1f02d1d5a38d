// Package progress 在终端上显示批量渲染的进度条，并在结束时输出汇总表格。
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Tracker 跟踪已完成的文档数
type Tracker struct {
	mu sync.Mutex

	totalUnits      int64
	completedUnits  int64
	failedUnits     int64
	startTime       time.Time
	lastUpdateTime  time.Time
	speedSamples    []float64
	maxSpeedSamples int
	unitSymbol      string
	writer          io.Writer
	refreshInterval time.Duration
	isActive        bool
	isDone          bool
	stopped         chan struct{}

	barWidth      int
	completedChar string
	remainingChar string

	barColor     text.Colors
	failColor    text.Colors
	timeColor    text.Colors
	unitColor    text.Colors
	messageColor text.Colors

	message string
}

// Option 进度跟踪器选项
type Option func(*Tracker)

// NewTracker 创建进度跟踪器
func NewTracker(totalUnits int64, options ...Option) *Tracker {
	now := time.Now()

	pt := &Tracker{
		totalUnits:      totalUnits,
		startTime:       now,
		lastUpdateTime:  now,
		speedSamples:    make([]float64, 0, 10),
		maxSpeedSamples: 10,
		unitSymbol:      "docs",
		writer:          os.Stderr,
		refreshInterval: time.Second,
		barWidth:        40,
		completedChar:   "█",
		remainingChar:   "░",
		barColor:        text.Colors{text.FgCyan},
		failColor:       text.Colors{text.FgRed},
		timeColor:       text.Colors{text.FgGreen},
		unitColor:       text.Colors{text.FgYellow},
		messageColor:    text.Colors{text.FgWhite},
		message:         "渲染",
	}

	for _, option := range options {
		option(pt)
	}
	return pt
}

// WithUnit 设置单位符号
func WithUnit(symbol string) Option {
	return func(pt *Tracker) {
		pt.unitSymbol = symbol
	}
}

// WithWriter 设置输出，nil 表示不输出
func WithWriter(writer io.Writer) Option {
	return func(pt *Tracker) {
		pt.writer = writer
	}
}

// WithRefreshInterval 设置刷新间隔
func WithRefreshInterval(interval time.Duration) Option {
	return func(pt *Tracker) {
		if interval > 0 {
			pt.refreshInterval = interval
		}
	}
}

// WithColors 设置颜色；传入空的 text.Colors 可以关闭着色
func WithColors(bar, fail, timeColor, unit, message text.Colors) Option {
	return func(pt *Tracker) {
		pt.barColor = bar
		pt.failColor = fail
		pt.timeColor = timeColor
		pt.unitColor = unit
		pt.messageColor = message
	}
}

// WithMessage 设置进度条前缀
func WithMessage(message string) Option {
	return func(pt *Tracker) {
		pt.message = message
	}
}

// Start 开始跟踪并启动定时刷新
func (pt *Tracker) Start() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isActive {
		return
	}
	pt.isActive = true
	pt.startTime = time.Now()
	pt.lastUpdateTime = pt.startTime
	pt.stopped = make(chan struct{})
	pt.render()

	go pt.refreshLoop(pt.stopped)
}

// refreshLoop 没有进展时也定时刷新已用时间
func (pt *Tracker) refreshLoop(stopped <-chan struct{}) {
	ticker := time.NewTicker(pt.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopped:
			return
		case <-ticker.C:
			pt.mu.Lock()
			if pt.isActive && time.Since(pt.lastUpdateTime) > pt.refreshInterval/2 {
				pt.render()
			}
			pt.mu.Unlock()
		}
	}
}

// Increment 记录一个完成的单位，failed 表示该单位处理失败
func (pt *Tracker) Increment(failed bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isDone {
		return
	}

	pt.completedUnits++
	if failed {
		pt.failedUnits++
	}

	now := time.Now()
	if elapsed := now.Sub(pt.lastUpdateTime).Seconds(); elapsed > 0 {
		if len(pt.speedSamples) >= pt.maxSpeedSamples {
			pt.speedSamples = pt.speedSamples[1:]
		}
		pt.speedSamples = append(pt.speedSamples, 1/elapsed)
	}
	pt.lastUpdateTime = now

	if pt.completedUnits >= pt.totalUnits {
		pt.isDone = true
	}
	if pt.isActive {
		pt.render()
	}
}

// SetMessage 设置进度条前缀
func (pt *Tracker) SetMessage(message string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.message = message
}

// Done 结束跟踪，summary 不为空时输出汇总表格
func (pt *Tracker) Done(summary *Summary) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isActive {
		pt.isActive = false
		close(pt.stopped)
		pt.render()
		if pt.writer != nil {
			fmt.Fprintln(pt.writer)
		}
	}
	pt.isDone = true

	if summary != nil {
		pt.renderSummaryTable(summary)
	}
}

// Completed 已完成的单位数
func (pt *Tracker) Completed() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return pt.completedUnits
}

// Failed 失败的单位数
func (pt *Tracker) Failed() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return pt.failedUnits
}

// GetPercentage 获取完成百分比
func (pt *Tracker) GetPercentage() float64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.totalUnits <= 0 {
		return 0
	}
	return float64(pt.completedUnits) / float64(pt.totalUnits) * 100
}

// GetETA 获取预计剩余时间
func (pt *Tracker) GetETA() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return pt.etaLocked()
}

// IsDone 检查是否已完成
func (pt *Tracker) IsDone() bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return pt.isDone
}

func (pt *Tracker) etaLocked() time.Duration {
	if pt.isDone || pt.totalUnits <= 0 || pt.completedUnits >= pt.totalUnits {
		return 0
	}
	speed := pt.speedLocked()
	if speed <= 0 {
		return 0
	}
	remaining := pt.totalUnits - pt.completedUnits
	return time.Duration(float64(remaining) / speed * float64(time.Second))
}

// speedLocked 加权平均速度，越新的样本权重越高
func (pt *Tracker) speedLocked() float64 {
	if len(pt.speedSamples) == 0 {
		elapsed := time.Since(pt.startTime).Seconds()
		if elapsed > 0 && pt.completedUnits > 0 {
			return float64(pt.completedUnits) / elapsed
		}
		return 0
	}

	var sum, weights float64
	for i, speed := range pt.speedSamples {
		weight := float64(i + 1)
		sum += speed * weight
		weights += weight
	}
	return sum / weights
}

// render 渲染一行进度条，调用方持有锁
func (pt *Tracker) render() {
	if pt.writer == nil {
		return
	}

	var percent float64
	completedWidth := 0
	if pt.totalUnits > 0 {
		percent = float64(pt.completedUnits) / float64(pt.totalUnits) * 100
		completedWidth = int(float64(pt.barWidth) * float64(pt.completedUnits) / float64(pt.totalUnits))
		if completedWidth > pt.barWidth {
			completedWidth = pt.barWidth
		}
	}

	var builder strings.Builder
	builder.WriteString("\x1b[K\r")

	if pt.message != "" {
		builder.WriteString(pt.messageColor.Sprint(pt.message))
		builder.WriteString(": ")
	}
	builder.WriteString(fmt.Sprintf("%5.1f%% [", percent))
	if completedWidth > 0 {
		builder.WriteString(pt.barColor.Sprint(strings.Repeat(pt.completedChar, completedWidth)))
	}
	builder.WriteString(strings.Repeat(pt.remainingChar, pt.barWidth-completedWidth))
	builder.WriteString("] ")

	builder.WriteString(pt.unitColor.Sprint(fmt.Sprintf("%d/%d %s", pt.completedUnits, pt.totalUnits, pt.unitSymbol)))
	if pt.failedUnits > 0 {
		builder.WriteString(" ")
		builder.WriteString(pt.failColor.Sprint(fmt.Sprintf("失败 %d", pt.failedUnits)))
	}

	builder.WriteString(" ")
	builder.WriteString(pt.timeColor.Sprint("用时: " + formatDuration(time.Since(pt.startTime))))
	if eta := pt.etaLocked(); eta > 0 {
		builder.WriteString(" ")
		builder.WriteString(pt.timeColor.Sprint("ETA: " + formatDuration(eta)))
	}

	fmt.Fprint(pt.writer, builder.String())
}

// formatDuration 格式化时间间隔
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm%ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// Summary 汇总表格的数据
type Summary struct {
	RunID       string
	Target      string
	Documents   int
	Failed      int
	Formulas    int
	InputBytes  int64
	OutputBytes int64
	TotalTime   time.Duration
	Engine      bool
	CacheHits   int64
	CacheMisses int64
}

// renderSummaryTable 渲染最终的汇总表格
func (pt *Tracker) renderSummaryTable(stats *Summary) {
	if pt.writer == nil {
		return
	}

	engine := "unavailable"
	if stats.Engine {
		engine = "available"
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(pt.writer)
	tw.AppendRow(table.Row{"项", "值"})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"批次", stats.RunID})
	tw.AppendRow(table.Row{"目标", stats.Target})
	tw.AppendRow(table.Row{"排版引擎", engine})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"文档", fmt.Sprintf("%d %s", stats.Documents, pt.unitSymbol)})
	tw.AppendRow(table.Row{"失败", stats.Failed})
	tw.AppendRow(table.Row{"公式", stats.Formulas})
	tw.AppendRow(table.Row{"输入字节", stats.InputBytes})
	tw.AppendRow(table.Row{"输出字节", stats.OutputBytes})
	if stats.CacheHits+stats.CacheMisses > 0 {
		tw.AppendRow(table.Row{"文档缓存", fmt.Sprintf("%d 命中 / %d 未命中", stats.CacheHits, stats.CacheMisses)})
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"总耗时", formatDuration(stats.TotalTime)})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
