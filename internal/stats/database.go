package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatsDBVersion   = "1.0.0"
	MaxRecentRecords = 100
)

// Database 渲染历史数据库，保存在一个 JSON 文件中
type Database struct {
	filePath string
	data     *StatisticsDB
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewDatabase 打开或创建历史数据库
func NewDatabase(filePath string, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &Database{
		filePath: filePath,
		logger:   logger,
	}

	// 确保目录存在
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	if err := db.load(); err != nil {
		return nil, fmt.Errorf("failed to load stats database: %w", err)
	}
	return db, nil
}

// load 加载统计数据，文件不存在时新建
func (db *Database) load() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	data, err := os.ReadFile(db.filePath)
	if os.IsNotExist(err) {
		now := time.Now()
		db.data = &StatisticsDB{
			Version:     StatsDBVersion,
			CreatedAt:   now,
			LastUpdated: now,
			TargetStats: make(map[string]*TargetStats),
			RecentRuns:  make([]*RunRecord, 0),
		}
		return db.saveUnsafe()
	}
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var statsDB StatisticsDB
	if err := json.Unmarshal(data, &statsDB); err != nil {
		return fmt.Errorf("failed to parse stats file: %w", err)
	}

	// 初始化可能为 nil 的字段
	if statsDB.TargetStats == nil {
		statsDB.TargetStats = make(map[string]*TargetStats)
	}
	if statsDB.RecentRuns == nil {
		statsDB.RecentRuns = make([]*RunRecord, 0)
	}

	db.data = &statsDB
	db.logger.Debug("loaded statistics database",
		zap.String("version", statsDB.Version),
		zap.Time("created_at", statsDB.CreatedAt),
		zap.Int64("total_runs", statsDB.TotalRuns))
	return nil
}

// Save 保存统计数据
func (db *Database) Save() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.saveUnsafe()
}

// saveUnsafe 调用方需持有锁
func (db *Database) saveUnsafe() error {
	db.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(db.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	// 原子写入
	tempFile := db.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}
	if err := os.Rename(tempFile, db.filePath); err != nil {
		return fmt.Errorf("failed to rename stats file: %w", err)
	}
	return nil
}

// AddRunRecord 记录一次渲染
func (db *Database) AddRunRecord(record *RunRecord) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if record.Status == "" {
		record.Status = runStatus(record)
	}

	// 更新总体统计
	db.data.TotalRuns++
	db.data.TotalDocuments += int64(record.Documents)
	db.data.TotalFormulas += int64(record.Formulas)
	db.data.TotalErrors += int64(record.Failed)
	db.data.TotalDuration += record.Duration

	// 更新目标统计
	target, exists := db.data.TargetStats[record.Target]
	if !exists {
		target = &TargetStats{Target: record.Target}
		db.data.TargetStats[record.Target] = target
	}
	target.RunCount++
	target.DocumentCount += int64(record.Documents)
	target.FormulaCount += int64(record.Formulas)
	target.ErrorCount += int64(record.Failed)
	target.LastUsed = record.Timestamp

	// 计算平均持续时间
	totalDuration := time.Duration(int64(target.AverageDuration) * (target.RunCount - 1))
	target.AverageDuration = (totalDuration + record.Duration) / time.Duration(target.RunCount)

	// 添加到最近记录，保持数量限制
	db.data.RecentRuns = append(db.data.RecentRuns, record)
	if len(db.data.RecentRuns) > MaxRecentRecords {
		sort.Slice(db.data.RecentRuns, func(i, j int) bool {
			return db.data.RecentRuns[i].Timestamp.After(db.data.RecentRuns[j].Timestamp)
		})
		db.data.RecentRuns = db.data.RecentRuns[:MaxRecentRecords]
	}

	db.updatePerformanceStats(record)
	return db.saveUnsafe()
}

// runStatus 根据失败数推断状态
func runStatus(record *RunRecord) string {
	switch {
	case record.Failed == 0:
		return StatusCompleted
	case record.Failed < record.Documents:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// updatePerformanceStats 更新性能统计
func (db *Database) updatePerformanceStats(record *RunRecord) {
	if record.Duration <= 0 {
		return
	}
	perf := &db.data.PerformanceStats
	seconds := record.Duration.Seconds()
	n := float64(db.data.TotalRuns)

	docSpeed := float64(record.Documents) / seconds
	formulaSpeed := float64(record.Formulas) / seconds
	if db.data.TotalRuns > 1 {
		perf.AverageDocumentsPerSecond = (perf.AverageDocumentsPerSecond*(n-1) + docSpeed) / n
		perf.AverageFormulasPerSecond = (perf.AverageFormulasPerSecond*(n-1) + formulaSpeed) / n
	} else {
		perf.AverageDocumentsPerSecond = docSpeed
		perf.AverageFormulasPerSecond = formulaSpeed
	}

	if perf.FastestRun == 0 || record.Duration < perf.FastestRun {
		perf.FastestRun = record.Duration
	}
	if record.Duration > perf.SlowestRun {
		perf.SlowestRun = record.Duration
	}
}

// RecordCacheStats 累加一次运行中文档缓存的命中情况
func (db *Database) RecordCacheStats(hits, misses int64) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	cs := &db.data.CacheStats
	cs.CacheHits += hits
	cs.CacheMisses += misses
	if total := cs.CacheHits + cs.CacheMisses; total > 0 {
		cs.CacheHitRate = float64(cs.CacheHits) / float64(total)
	}
	return db.saveUnsafe()
}

// UpdateCacheStats 扫描磁盘渲染缓存目录
func (db *Database) UpdateCacheStats(renderDir string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.data.CacheStats.RenderDir = renderDir

	var totalSize, fileCount int64
	var oldestTime, newestTime time.Time

	err := filepath.Walk(renderDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 忽略错误，继续处理
		}
		if info.IsDir() {
			return nil
		}

		fileCount++
		totalSize += info.Size()
		modTime := info.ModTime()
		if oldestTime.IsZero() || modTime.Before(oldestTime) {
			oldestTime = modTime
		}
		if newestTime.IsZero() || modTime.After(newestTime) {
			newestTime = modTime
		}
		return nil
	})
	if err != nil {
		db.logger.Warn("failed to scan render cache directory", zap.Error(err))
	}

	db.data.CacheStats.TotalCacheFiles = fileCount
	db.data.CacheStats.TotalCacheSize = totalSize
	db.data.CacheStats.OldestCacheEntry = oldestTime
	db.data.CacheStats.NewestCacheEntry = newestTime
	return db.saveUnsafe()
}

// GetStats 获取统计数据的深拷贝
func (db *Database) GetStats() *StatisticsDB {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	data, _ := json.Marshal(db.data)
	var copy StatisticsDB
	_ = json.Unmarshal(data, &copy)
	return &copy
}

// GetRecentRuns 获取最近的记录，最新的在前
func (db *Database) GetRecentRuns(limit int) []*RunRecord {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if limit <= 0 || limit > len(db.data.RecentRuns) {
		limit = len(db.data.RecentRuns)
	}

	sorted := make([]*RunRecord, len(db.data.RecentRuns))
	copy(sorted, db.data.RecentRuns)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted[:limit]
}
