package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 2048, cfg.Cache.RenderSize)
	assert.Equal(t, 4096, cfg.Cache.DocumentSize)
	assert.True(t, cfg.Scanner.NakedLatex)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mathnorm.yaml")
	content := `
engine:
  executable: /usr/local/bin/node
  timeout: 2s
cache:
  render_size: 10
scanner:
  naked_latex: false
batch:
  concurrency: 8
history:
  path: /var/lib/mathnorm/history.json
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/node", cfg.Engine.Executable)
	assert.Equal(t, "scripts/render_mathjax.cjs", cfg.Engine.Script)
	assert.Equal(t, 2*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 10, cfg.Cache.RenderSize)
	assert.Equal(t, 4096, cfg.Cache.DocumentSize)
	assert.False(t, cfg.Scanner.NakedLatex)
	assert.True(t, cfg.Scanner.DollarDelimiters)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, "/var/lib/mathnorm/history.json", cfg.History.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	t.Setenv("MATHNORM_ENGINE_DISABLED", "true")
	t.Setenv("MATHNORM_CACHE_DOCUMENT_SIZE", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Engine.Disabled)
	assert.Equal(t, 7, cfg.Cache.DocumentSize)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  render_size: 0\n"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "cache.render_size")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Zero timeout", func(c *Config) { c.Engine.Timeout = 0 }, "engine.timeout"},
		{"Negative document cache", func(c *Config) { c.Cache.DocumentSize = -1 }, "cache.document_size"},
		{"Zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }, "batch.concurrency"},
		{"Missing executable", func(c *Config) { c.Engine.Executable = "" }, "engine.executable"},
		{"Missing executable but disabled", func(c *Config) {
			c.Engine.Executable = ""
			c.Engine.Disabled = true
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mathnorm.yaml")
	cfg := NewDefaultConfig()
	cfg.Cache.RenderDir = "/tmp/mathnorm"
	cfg.Engine.Timeout = 3 * time.Second
	cfg.History.Path = "/tmp/mathnorm/history.json"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
