package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
)

func plain() Option {
	return WithColors(text.Colors{}, text.Colors{}, text.Colors{}, text.Colors{}, text.Colors{})
}

func TestTracker(t *testing.T) {
	t.Run("counts completed and failed", func(t *testing.T) {
		var buf bytes.Buffer
		pt := NewTracker(4, WithWriter(&buf), WithRefreshInterval(time.Hour), plain())
		pt.Start()

		pt.Increment(false)
		pt.Increment(true)
		assert.Equal(t, int64(2), pt.Completed())
		assert.Equal(t, int64(1), pt.Failed())
		assert.InDelta(t, 50.0, pt.GetPercentage(), 0.001)
		assert.False(t, pt.IsDone())

		pt.Increment(false)
		pt.Increment(false)
		assert.True(t, pt.IsDone())
		assert.Equal(t, time.Duration(0), pt.GetETA())

		pt.Done(nil)
		out := buf.String()
		assert.Contains(t, out, "4/4 docs")
		assert.Contains(t, out, "失败 1")
	})

	t.Run("summary table", func(t *testing.T) {
		var buf bytes.Buffer
		pt := NewTracker(1, WithWriter(&buf), WithUnit("files"), plain())
		pt.Increment(false)
		pt.Done(&Summary{
			RunID:     "run-1",
			Target:    "pdf",
			Documents: 1,
			Formulas:  7,
			TotalTime: 1500 * time.Millisecond,
		})

		out := buf.String()
		assert.Contains(t, out, "run-1")
		assert.Contains(t, out, "1 files")
		assert.Contains(t, out, "1.5s")
		assert.NotContains(t, out, "文档缓存")
	})

	t.Run("message follows the last document", func(t *testing.T) {
		var buf bytes.Buffer
		pt := NewTracker(2, WithWriter(&buf), WithRefreshInterval(time.Hour), plain())
		pt.Start()
		pt.SetMessage("one.html")
		pt.Increment(false)
		pt.SetMessage("two.md")
		pt.Increment(false)
		pt.Done(nil)

		out := buf.String()
		assert.Contains(t, out, "one.html")
		assert.Contains(t, out, "two.md")
	})

	t.Run("nil writer", func(t *testing.T) {
		pt := NewTracker(1, WithWriter(nil))
		pt.Start()
		pt.Increment(false)
		pt.Done(&Summary{})
		assert.True(t, pt.IsDone())
	})

	t.Run("zero total", func(t *testing.T) {
		pt := NewTracker(0, WithWriter(nil))
		assert.Equal(t, 0.0, pt.GetPercentage())
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h2m3s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}
