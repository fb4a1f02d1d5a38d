package stats

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Visualizer 历史数据可视化器
type Visualizer struct {
	db  *Database
	out io.Writer
}

// NewVisualizer 创建可视化器
func NewVisualizer(db *Database, out io.Writer) *Visualizer {
	return &Visualizer{db: db, out: out}
}

// ShowOverview 显示总览
func (v *Visualizer) ShowOverview() {
	stats := v.db.GetStats()

	title := color.New(color.FgCyan, color.Bold)
	title.Fprintln(v.out, "Render History Overview")
	title.Fprintln(v.out, strings.Repeat("=", 50))

	fmt.Fprintln(v.out)
	v.printSection("Overall", [][]string{
		{"Total Runs", formatNumber(stats.TotalRuns)},
		{"Total Documents", formatNumber(stats.TotalDocuments)},
		{"Total Formulas", formatNumber(stats.TotalFormulas)},
		{"Total Errors", formatNumber(stats.TotalErrors)},
		{"Total Duration", formatDuration(stats.TotalDuration)},
		{"Database Created", formatTime(stats.CreatedAt)},
		{"Last Updated", formatTime(stats.LastUpdated)},
	})

	fmt.Fprintln(v.out)
	v.printSection("Performance", [][]string{
		{"Avg Documents/Second", fmt.Sprintf("%.2f docs/sec", stats.PerformanceStats.AverageDocumentsPerSecond)},
		{"Avg Formulas/Second", fmt.Sprintf("%.2f formulas/sec", stats.PerformanceStats.AverageFormulasPerSecond)},
		{"Fastest Run", formatDuration(stats.PerformanceStats.FastestRun)},
		{"Slowest Run", formatDuration(stats.PerformanceStats.SlowestRun)},
	})

	fmt.Fprintln(v.out)
	v.printCacheStats(stats.CacheStats)
}

// ShowTargets 显示各渲染目标的统计
func (v *Visualizer) ShowTargets() {
	stats := v.db.GetStats()

	title := color.New(color.FgMagenta, color.Bold)
	title.Fprintln(v.out, "Render Targets")
	title.Fprintln(v.out, strings.Repeat("=", 50))

	if len(stats.TargetStats) == 0 {
		fmt.Fprintln(v.out, "No target data available.")
		return
	}

	targets := make([]*TargetStats, 0, len(stats.TargetStats))
	for _, target := range stats.TargetStats {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].RunCount != targets[j].RunCount {
			return targets[i].RunCount > targets[j].RunCount
		}
		return targets[i].Target < targets[j].Target
	})

	tw := table.NewWriter()
	tw.SetOutputMirror(v.out)
	tw.AppendHeader(table.Row{"Target", "Runs", "Documents", "Formulas", "Errors", "Avg Duration", "Last Used"})
	for _, target := range targets {
		tw.AppendRow(table.Row{
			target.Target,
			formatNumber(target.RunCount),
			formatNumber(target.DocumentCount),
			formatNumber(target.FormulaCount),
			formatNumber(target.ErrorCount),
			formatDuration(target.AverageDuration),
			formatTime(target.LastUsed),
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// ShowRecentRuns 显示最近的渲染记录
func (v *Visualizer) ShowRecentRuns(limit int) {
	records := v.db.GetRecentRuns(limit)

	title := color.New(color.FgBlue, color.Bold)
	title.Fprintf(v.out, "Recent Runs (Last %d)\n", len(records))
	title.Fprintln(v.out, strings.Repeat("=", 50))

	if len(records) == 0 {
		fmt.Fprintln(v.out, "No recent runs found.")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(v.out)
	tw.AppendHeader(table.Row{"Time", "ID", "Target", "Docs", "Failed", "Formulas", "Duration", "Status"})
	for _, record := range records {
		id := record.ID
		if len(id) > 8 {
			id = id[:8]
		}
		tw.AppendRow(table.Row{
			formatTime(record.Timestamp),
			id,
			record.Target,
			record.Documents,
			record.Failed,
			record.Formulas,
			formatDuration(record.Duration),
			record.Status,
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()

	errorColor := color.New(color.FgRed)
	for _, record := range records {
		if record.ErrorMessage != "" {
			errorColor.Fprintf(v.out, "  %s: %s\n", record.ID, record.ErrorMessage)
		}
	}
}

// printCacheStats 打印缓存统计
func (v *Visualizer) printCacheStats(cache CacheStatistics) {
	data := [][]string{
		{"Document Cache Hit Rate", fmt.Sprintf("%.1f%% (%d hits, %d misses)",
			cache.CacheHitRate*100, cache.CacheHits, cache.CacheMisses)},
	}
	if cache.RenderDir != "" {
		data = append(data,
			[]string{"Render Cache Directory", cache.RenderDir},
			[]string{"Render Cache Files", formatNumber(cache.TotalCacheFiles)},
			[]string{"Render Cache Size", formatBytes(cache.TotalCacheSize)},
		)
	}
	if !cache.OldestCacheEntry.IsZero() {
		data = append(data, []string{"Oldest Entry", formatTime(cache.OldestCacheEntry)})
	}
	if !cache.NewestCacheEntry.IsZero() {
		data = append(data, []string{"Newest Entry", formatTime(cache.NewestCacheEntry)})
	}

	v.printSection("Cache", data)
}

// printSection 打印一个统计部分
func (v *Visualizer) printSection(title string, data [][]string) {
	sectionColor := color.New(color.FgYellow, color.Bold)
	sectionColor.Fprintf(v.out, "%s\n", title)

	maxLabelLen := 0
	for _, row := range data {
		if len(row[0]) > maxLabelLen {
			maxLabelLen = len(row[0])
		}
	}

	labelColor := color.New(color.FgCyan)
	valueColor := color.New(color.FgWhite, color.Bold)
	for _, row := range data {
		labelColor.Fprintf(v.out, "  %-*s: ", maxLabelLen, row[0])
		valueColor.Fprintln(v.out, row[1])
	}
}

// formatNumber 格式化数字（添加千位分隔符）
func formatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(char)
	}
	return result.String()
}

// formatBytes 格式化字节数
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// formatDuration 格式化持续时间
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d < time.Second:
		return fmt.Sprintf("%.0fms", float64(d.Nanoseconds())/1e6)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTime 格式化时间
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}

	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04:05")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02 15:04")
	}
	return t.Format("2006-01-02")
}
