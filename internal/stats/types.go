package stats

import (
	"time"
)

// StatisticsDB 渲染历史数据库结构
type StatisticsDB struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// 总体统计
	TotalRuns      int64         `json:"total_runs"`
	TotalDocuments int64         `json:"total_documents"`
	TotalFormulas  int64         `json:"total_formulas"`
	TotalErrors    int64         `json:"total_errors"`
	TotalDuration  time.Duration `json:"total_duration"`

	// 缓存统计
	CacheStats CacheStatistics `json:"cache_stats"`

	// 按渲染目标统计
	TargetStats map[string]*TargetStats `json:"target_stats"`

	// 最近的批次记录
	RecentRuns []*RunRecord `json:"recent_runs"`

	// 性能统计
	PerformanceStats PerformanceStatistics `json:"performance_stats"`
}

// CacheStatistics 渲染缓存统计
type CacheStatistics struct {
	RenderDir        string    `json:"render_dir"`
	TotalCacheFiles  int64     `json:"total_cache_files"`
	TotalCacheSize   int64     `json:"total_cache_size_bytes"`
	CacheHitRate     float64   `json:"cache_hit_rate"`
	CacheHits        int64     `json:"cache_hits"`
	CacheMisses      int64     `json:"cache_misses"`
	OldestCacheEntry time.Time `json:"oldest_cache_entry"`
	NewestCacheEntry time.Time `json:"newest_cache_entry"`
}

// TargetStats 单个渲染目标（html、pdf、browser）的统计
type TargetStats struct {
	Target          string        `json:"target"`
	RunCount        int64         `json:"run_count"`
	DocumentCount   int64         `json:"document_count"`
	FormulaCount    int64         `json:"formula_count"`
	ErrorCount      int64         `json:"error_count"`
	AverageDuration time.Duration `json:"average_duration"`
	LastUsed        time.Time     `json:"last_used"`
}

// RunRecord 一次渲染（单文件或批量）的记录
type RunRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Inputs    []string  `json:"inputs"`
	OutputDir string    `json:"output_dir,omitempty"`
	Target    string    `json:"target"`
	Engine    bool      `json:"engine"`

	// 统计信息
	Documents   int           `json:"documents"`
	Failed      int           `json:"failed"`
	Formulas    int           `json:"formulas"`
	InputBytes  int64         `json:"input_bytes"`
	OutputBytes int64         `json:"output_bytes"`
	Duration    time.Duration `json:"duration"`
	Status      string        `json:"status"`

	// 错误信息
	ErrorMessage string `json:"error_message,omitempty"`
}

// 批次状态
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// PerformanceStatistics 性能统计
type PerformanceStatistics struct {
	AverageDocumentsPerSecond float64       `json:"average_documents_per_second"`
	AverageFormulasPerSecond  float64       `json:"average_formulas_per_second"`
	FastestRun                time.Duration `json:"fastest_run"`
	SlowestRun                time.Duration `json:"slowest_run"`
}
