package limiter

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsSnapshot 单个资源的指标快照
type MetricsSnapshot struct {
	Resource      string
	Algorithm     string
	TotalRequests int64
	Allowed       int64
	Rejected      int64
	FailOpen      int64
	RejectRate    float64
	LastResetAt   time.Time
}

// MetricsCollector 按资源维度采集判定结果
type MetricsCollector interface {
	// RecordAllowed 记录放行
	RecordAllowed(remaining int64)

	// RecordRejected 记录拒绝
	RecordRejected(reason string)

	// RecordFailOpen 记录降级放行（计入 Allowed，同时单独计数）
	RecordFailOpen(reason string)

	// GetSnapshot 获取当前快照
	GetSnapshot() *MetricsSnapshot

	// Reset 清零计数
	Reset()
}

type metricsCollector struct {
	resource  string
	algorithm string

	total    atomic.Int64
	allowed  atomic.Int64
	rejected atomic.Int64
	failOpen atomic.Int64

	mu          sync.RWMutex
	lastResetAt time.Time
}

// NewMetricsCollector 创建指标采集器
func NewMetricsCollector(resource string, algorithm string) MetricsCollector {
	return &metricsCollector{
		resource:    resource,
		algorithm:   algorithm,
		lastResetAt: time.Now(),
	}
}

func (m *metricsCollector) RecordAllowed(remaining int64) {
	m.total.Add(1)
	m.allowed.Add(1)
}

func (m *metricsCollector) RecordRejected(reason string) {
	m.total.Add(1)
	m.rejected.Add(1)
}

func (m *metricsCollector) RecordFailOpen(reason string) {
	m.total.Add(1)
	m.allowed.Add(1)
	m.failOpen.Add(1)
}

func (m *metricsCollector) GetSnapshot() *MetricsSnapshot {
	total := m.total.Load()
	rejected := m.rejected.Load()

	var rejectRate float64
	if total > 0 {
		rejectRate = float64(rejected) / float64(total)
	}

	m.mu.RLock()
	lastResetAt := m.lastResetAt
	m.mu.RUnlock()

	return &MetricsSnapshot{
		Resource:      m.resource,
		Algorithm:     m.algorithm,
		TotalRequests: total,
		Allowed:       m.allowed.Load(),
		Rejected:      rejected,
		FailOpen:      m.failOpen.Load(),
		RejectRate:    rejectRate,
		LastResetAt:   lastResetAt,
	}
}

func (m *metricsCollector) Reset() {
	m.total.Store(0)
	m.allowed.Store(0)
	m.rejected.Store(0)
	m.failOpen.Store(0)

	m.mu.Lock()
	m.lastResetAt = time.Now()
	m.mu.Unlock()
}
