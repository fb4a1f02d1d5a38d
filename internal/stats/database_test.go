package stats

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) (*Database, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history", "stats.json")
	db, err := NewDatabase(path, nil)
	require.NoError(t, err)
	return db, path
}

func TestDatabase(t *testing.T) {
	t.Run("creates file", func(t *testing.T) {
		_, path := newTestDatabase(t)
		_, err := os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("aggregates runs", func(t *testing.T) {
		db, path := newTestDatabase(t)
		now := time.Now()

		require.NoError(t, db.AddRunRecord(&RunRecord{
			ID: "a", Timestamp: now.Add(-time.Minute), Target: "pdf",
			Documents: 3, Formulas: 10, Duration: 2 * time.Second,
		}))
		require.NoError(t, db.AddRunRecord(&RunRecord{
			ID: "b", Timestamp: now, Target: "pdf",
			Documents: 2, Failed: 1, Formulas: 4, Duration: 4 * time.Second,
		}))
		require.NoError(t, db.AddRunRecord(&RunRecord{
			ID: "c", Timestamp: now.Add(-time.Hour), Target: "browser",
			Documents: 1, Failed: 1, Duration: time.Second,
		}))

		stats := db.GetStats()
		assert.Equal(t, int64(3), stats.TotalRuns)
		assert.Equal(t, int64(6), stats.TotalDocuments)
		assert.Equal(t, int64(14), stats.TotalFormulas)
		assert.Equal(t, int64(2), stats.TotalErrors)
		assert.Equal(t, 3*time.Second, stats.TargetStats["pdf"].AverageDuration)
		assert.Equal(t, time.Second, stats.PerformanceStats.FastestRun)
		assert.Equal(t, 4*time.Second, stats.PerformanceStats.SlowestRun)

		recent := db.GetRecentRuns(2)
		require.Len(t, recent, 2)
		assert.Equal(t, "b", recent[0].ID)
		assert.Equal(t, StatusPartial, recent[0].Status)
		assert.Equal(t, "a", recent[1].ID)
		assert.Equal(t, StatusCompleted, recent[1].Status)
		assert.Equal(t, StatusFailed, db.GetRecentRuns(0)[2].Status)

		// 重新打开后数据仍在
		reopened, err := NewDatabase(path, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), reopened.GetStats().TotalRuns)
	})

	t.Run("keeps recent limit", func(t *testing.T) {
		db, _ := newTestDatabase(t)
		base := time.Now()
		for i := 0; i < MaxRecentRecords+5; i++ {
			require.NoError(t, db.AddRunRecord(&RunRecord{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				Target:    "html",
				Documents: 1,
			}))
		}
		assert.Len(t, db.GetRecentRuns(0), MaxRecentRecords)
	})

	t.Run("cache stats", func(t *testing.T) {
		db, _ := newTestDatabase(t)
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("12345"), 0o644))

		require.NoError(t, db.RecordCacheStats(3, 1))
		require.NoError(t, db.UpdateCacheStats(dir))

		cs := db.GetStats().CacheStats
		assert.InDelta(t, 0.75, cs.CacheHitRate, 0.0001)
		assert.Equal(t, int64(1), cs.TotalCacheFiles)
		assert.Equal(t, int64(5), cs.TotalCacheSize)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stats.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
		_, err := NewDatabase(path, nil)
		assert.Error(t, err)
	})
}

func TestVisualizer(t *testing.T) {
	db, _ := newTestDatabase(t)
	require.NoError(t, db.AddRunRecord(&RunRecord{
		ID: "0123456789", Timestamp: time.Now(), Target: "pdf",
		Documents: 2, Formulas: 5, Duration: 1500 * time.Millisecond,
		ErrorMessage: "page.html: permission denied",
	}))

	var buf bytes.Buffer
	v := NewVisualizer(db, &buf)
	v.ShowOverview()
	v.ShowTargets()
	v.ShowRecentRuns(10)

	out := buf.String()
	assert.Contains(t, out, "Total Runs")
	assert.Contains(t, out, "pdf")
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "permission denied")
	assert.Contains(t, out, "1.5s")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "N/A", formatTime(time.Time{}))
}
