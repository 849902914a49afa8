package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// manager builds and caches module loggers against one shared core.
type manager struct {
	config  ManagerConfig
	core    zapcore.Core
	loggers map[string]*CtxZapLogger
	mu      sync.RWMutex
}

var (
	globalMu      sync.RWMutex
	globalManager *manager
)

// Init configures the global logger manager. Safe to call once at startup;
// later GetLogger calls without Init fall back to a console-only default.
func Init(cfg ManagerConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	m, err := newManager(cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
	return nil
}

// GetLogger returns the context-aware logger for a module, creating it on
// first use. Never fails: without prior Init a default console manager is
// installed.
func GetLogger(module string) *CtxZapLogger {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()

	if m == nil {
		globalMu.Lock()
		if globalManager == nil {
			// Defaults cannot fail validation
			globalManager, _ = newManager(DefaultManagerConfig())
		}
		m = globalManager
		globalMu.Unlock()
	}

	return m.get(module)
}

// Sync flushes buffered log entries.
func Sync() {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()

	if m == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
}

// newManager 构建共享core
func newManager(cfg ManagerConfig) (*manager, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var cores []zapcore.Core
	if cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	if cfg.EnableFile {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.BaseLogDir, "app.log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	return &manager{
		config:  cfg,
		core:    zapcore.NewTee(cores...),
		loggers: make(map[string]*CtxZapLogger),
	}, nil
}

// get 获取或创建模块logger
func (m *manager) get(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[module]; ok {
		return l
	}

	opts := []zap.Option{}
	if m.config.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	base := zap.New(m.core, opts...).With(zap.String("module", module))
	l := &CtxZapLogger{
		base:   base,
		module: module,
		config: &m.config,
	}
	m.loggers[module] = l
	return l
}
