package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "admissiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTestConfig(t, `
server:
  addr: ":9090"
  mode: test
limiter:
  enabled: true
  store_type: memory
  scope: ip
  default:
    algorithm: sliding_window
    limit: 50
    window: 30s
  resources:
    http:
      limit: 10
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "test", cfg.Server.Mode)
	// 未设置的字段回填默认值
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.LoadSampleInterval)

	assert.True(t, cfg.Limiter.Enabled)
	assert.Equal(t, int64(50), cfg.Limiter.Default.Limit)
	assert.Equal(t, 30*time.Second, cfg.Limiter.Default.Window)

	// 资源配置与默认合并
	http := cfg.Limiter.GetResourceConfig("http")
	assert.Equal(t, int64(10), http.Limit)
	assert.Equal(t, "sliding_window", http.Algorithm)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeTestConfig(t, `
server:
  addr: ":8080"
limiter:
  enabled: false
`)

	t.Setenv("ADMISSION_SERVER_ADDR", ":7070")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig("/nonexistent/admissiond.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidLimiter(t *testing.T) {
	path := writeTestConfig(t, `
limiter:
  enabled: true
  store_type: cassandra
`)

	_, err := loadConfig(path)
	assert.Error(t, err)
}
