package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/coinfolio/go-admission/limiter"
	"github.com/coinfolio/go-admission/logger"
	"github.com/coinfolio/go-admission/redis"
	"github.com/spf13/viper"
)

// AppConfig 网关全量配置
type AppConfig struct {
	Server  ServerConfig         `mapstructure:"server"`
	Logger  logger.ManagerConfig `mapstructure:"logger"`
	Redis   redis.Config         `mapstructure:"redis"`
	Limiter limiter.Config       `mapstructure:"limiter"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// Addr 监听地址（默认 ":8080"）
	Addr string `mapstructure:"addr"`

	// Mode gin 运行模式：debug, release, test（默认 release）
	Mode string `mapstructure:"mode"`

	// ReadTimeout 读超时（默认 10s）
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout 写超时（默认 10s）
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout 优雅关停等待时间（默认 10s）
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// LoadSampleInterval 自适应算法的负载采样间隔（默认 5s）
	LoadSampleInterval time.Duration `mapstructure:"load_sample_interval"`
}

// applyDefaults 填充零值字段
func (s *ServerConfig) applyDefaults() {
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.Mode == "" {
		s.Mode = "release"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 10 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 10 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	if s.LoadSampleInterval == 0 {
		s.LoadSampleInterval = 5 * time.Second
	}
}

// loadConfig 读取 YAML 配置并与环境变量合并
// 环境变量前缀 ADMISSION，点号换下划线：limiter.store_type ->
// ADMISSION_LIMITER_STORE_TYPE
func loadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ADMISSION")
	v.SetEnvKeyReplacer(newEnvReplacer())
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &AppConfig{
		Limiter: limiter.DefaultConfig(),
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Server.applyDefaults()
	cfg.Logger.ApplyDefaults()
	cfg.Redis.ApplyDefaults()

	if err := cfg.Limiter.Validate(); err != nil {
		return nil, fmt.Errorf("limiter config: %w", err)
	}

	return cfg, nil
}

func newEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
