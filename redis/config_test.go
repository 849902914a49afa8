package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:6379"}
	assert.NoError(t, cfg.Validate())

	cfg = Config{}
	assert.Error(t, cfg.Validate(), "addr 必填")

	cfg = Config{Addr: "127.0.0.1:6379", DB: 16}
	assert.Error(t, cfg.Validate())

	cfg = Config{Addr: "127.0.0.1:6379", PoolSize: -1}
	assert.Error(t, cfg.Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:6379"}
	cfg.ApplyDefaults()

	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5, cfg.MinIdleConns)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
}

func TestConfig_ApplyDefaultsKeepsExplicit(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:6379", PoolSize: 50, DialTimeout: time.Second}
	cfg.ApplyDefaults()

	assert.Equal(t, 50, cfg.PoolSize)
	assert.Equal(t, time.Second, cfg.DialTimeout)
}
