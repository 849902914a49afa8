// Package redis 构建计数存储后端使用的共享 Redis 客户端。
package redis

import (
	"fmt"
	"time"
)

// Config 单实例 Redis 连接配置
type Config struct {
	// Addr 地址（host:port），必填
	Addr string `mapstructure:"addr"`

	// Password 密码，可选
	Password string `mapstructure:"password"`

	// DB 库编号（0-15）
	DB int `mapstructure:"db"`

	// PoolSize 连接池大小，默认 10
	PoolSize int `mapstructure:"pool_size"`

	// MinIdleConns 最小空闲连接数，默认 5
	MinIdleConns int `mapstructure:"min_idle_conns"`

	// MaxRetries 命令重试次数，默认 3
	MaxRetries int `mapstructure:"max_retries"`

	// DialTimeout 建连超时，默认 5s
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// ReadTimeout 读超时，默认 3s
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout 写超时，默认 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr cannot be empty")
	case c.DB < 0 || c.DB > 15:
		return fmt.Errorf("db must be between 0 and 15, got: %d", c.DB)
	case c.PoolSize < 0:
		return fmt.Errorf("pool_size must be >= 0, got: %d", c.PoolSize)
	case c.MinIdleConns < 0:
		return fmt.Errorf("min_idle_conns must be >= 0, got: %d", c.MinIdleConns)
	}
	return nil
}

// ApplyDefaults 为零值字段回填默认值
func (c *Config) ApplyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}
