// Package logger provides context-aware structured logging on top of zap.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ManagerConfig global logger configuration (shared by all modules)
type ManagerConfig struct {
	Level         string `mapstructure:"level"`
	AppName       string `mapstructure:"app_name"` // injected into every record
	Encoding      string `mapstructure:"encoding"` // json or console
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
	BaseLogDir    string `mapstructure:"base_log_dir"`

	// File rotation configuration
	MaxSize    int  `mapstructure:"max_size"`    // Maximum size of one file (MB)
	MaxBackups int  `mapstructure:"max_backups"` // Keep the number of old files
	MaxAge     int  `mapstructure:"max_age"`     // Number of days to retain
	Compress   bool `mapstructure:"compress"`    // Whether to compress

	EnableCaller bool `mapstructure:"enable_caller"`

	// Trace ID configuration
	EnableTraceID    bool   `mapstructure:"enable_trace_id"`
	TraceIDKey       string `mapstructure:"trace_id_key"`        // the key in context
	TraceIDFieldName string `mapstructure:"trace_id_field_name"` // log field name
}

// Returns default manager configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Level:            "info",
		Encoding:         "json",
		EnableConsole:    true,
		EnableFile:       false,
		BaseLogDir:       "logs",
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           28,
		Compress:         true,
		EnableCaller:     true,
		EnableTraceID:    true,
		TraceIDKey:       "trace_id",
		TraceIDFieldName: "trace_id",
	}
}

// ApplyDefaults fills zero-valued fields with default values (in-place)
func (c *ManagerConfig) ApplyDefaults() {
	defaults := DefaultManagerConfig()

	if c.Level == "" {
		c.Level = defaults.Level
	}
	if c.Encoding == "" {
		c.Encoding = defaults.Encoding
	}
	if c.BaseLogDir == "" {
		c.BaseLogDir = defaults.BaseLogDir
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = defaults.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = defaults.TraceIDFieldName
	}
}

// Validate configuration
func (c *ManagerConfig) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	if c.Encoding != "json" && c.Encoding != "console" {
		return fmt.Errorf("invalid encoding: %s (must be json or console)", c.Encoding)
	}
	return nil
}

// parseLevel 解析日志级别
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}
