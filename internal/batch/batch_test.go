package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nerdneilsfield/go-mathnorm/pkg/mathnorm"
	"github.com/nerdneilsfield/go-mathnorm/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperProcessor 把文档转为大写，便于检查输出
type upperProcessor struct {
	calls atomic.Int64
}

func (p *upperProcessor) Process(_ context.Context, doc string, _ mathnorm.RenderTarget) string {
	p.calls.Add(1)
	return strings.ToUpper(doc)
}

func (p *upperProcessor) Scan(doc string) []mathnorm.MathSpan {
	return make([]mathnorm.MathSpan, strings.Count(doc, `\(`))
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestPlan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.html":        "a",
		"notes.txt":     "skip",
		"sub/b.md":      "b",
		"sub/c.HTM":     "c",
		"sub/deep/d.md": "d",
	})
	out := t.TempDir()

	t.Run("directory", func(t *testing.T) {
		jobs, err := Plan([]string{root}, out)
		require.NoError(t, err)
		require.Len(t, jobs, 4)

		outputs := make(map[string]bool)
		for _, job := range jobs {
			outputs[job.Output] = true
		}
		assert.True(t, outputs[filepath.Join(out, "a.html")])
		assert.True(t, outputs[filepath.Join(out, "sub", "b.html")])
		assert.True(t, outputs[filepath.Join(out, "sub", "c.html")])
		assert.True(t, outputs[filepath.Join(out, "sub", "deep", "d.html")])
	})

	t.Run("single file", func(t *testing.T) {
		jobs, err := Plan([]string{filepath.Join(root, "sub", "b.md")}, out)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, filepath.Join(out, "b.html"), jobs[0].Output)
	})

	t.Run("overwrite", func(t *testing.T) {
		_, err := Plan([]string{filepath.Join(root, "a.html")}, root)
		assert.ErrorIs(t, err, ErrOverwrite)
	})

	t.Run("duplicate outputs", func(t *testing.T) {
		_, err := Plan([]string{filepath.Join(root, "sub", "b.md"), filepath.Join(root, "sub", "b.md")}, out)
		assert.Error(t, err)
	})

	t.Run("no inputs", func(t *testing.T) {
		empty := writeTree(t, map[string]string{"x.txt": "x"})
		_, err := Plan([]string{empty}, out)
		assert.ErrorIs(t, err, ErrNoInputs)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Plan([]string{filepath.Join(root, "nope")}, out)
		assert.Error(t, err)
	})
}

func TestRunner(t *testing.T) {
	root := writeTree(t, map[string]string{
		"one.html": `<p>\(x\) and \(y\)</p>`,
		"two.md":   "---\ntitle: Second\n---\n\nplain $z$\n",
	})
	out := t.TempDir()

	jobs, err := Plan([]string{root}, out)
	require.NoError(t, err)
	// 第三个任务的输入不存在
	jobs = append(jobs, Job{Input: filepath.Join(root, "missing.html"), Output: filepath.Join(out, "missing.html")})

	var buf bytes.Buffer
	tracker := progress.NewTracker(int64(len(jobs)), progress.WithWriter(&buf))
	proc := &upperProcessor{}
	runner := NewRunner(proc, Options{
		Target:      mathnorm.TargetPDF,
		Concurrency: 2,
		Standalone:  true,
		Tracker:     tracker,
	}, nil)

	report, err := runner.Run(context.Background(), jobs)
	require.NoError(t, err)
	tracker.Done(nil)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, mathnorm.TargetPDF, report.Target)
	assert.Len(t, report.Results, 3)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 3, report.Formulas())
	assert.Error(t, report.Errors())
	assert.Equal(t, int64(2), proc.calls.Load())
	assert.Equal(t, int64(3), tracker.Completed())
	assert.Equal(t, int64(1), tracker.Failed())
	assert.Regexp(t, `one\.html|two\.md|missing\.html`, buf.String())

	in, outBytes := report.Bytes()
	assert.Positive(t, in)
	assert.Positive(t, outBytes)

	one, err := os.ReadFile(filepath.Join(out, "one.html"))
	require.NoError(t, err)
	assert.Contains(t, string(one), "<title>one</title>")
	assert.Contains(t, string(one), `<P>\(X\) AND \(Y\)</P>`)

	two, err := os.ReadFile(filepath.Join(out, "two.html"))
	require.NoError(t, err)
	assert.Contains(t, string(two), "<title>Second</title>")
}

func TestRunnerCanceled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.html": "a", "b.html": "b"})
	jobs, err := Plan([]string{root}, t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(&upperProcessor{}, Options{Target: mathnorm.TargetHTML}, nil)
	_, err = runner.Run(ctx, jobs)
	assert.ErrorIs(t, err, context.Canceled)
}
