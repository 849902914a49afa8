package limiter

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig OTel 指标开关
type MetricsConfig struct {
	Enabled bool
}

// OTelMetrics 把判定结果上报为 OpenTelemetry 计数器。
// exporter 的装配属于宿主应用，这里只向注入的 Meter 注册 instrument；
// 未注册前所有 Record* 都是空操作。
type OTelMetrics struct {
	config MetricsConfig

	mu         sync.RWMutex
	registered bool

	requestsTotal metric.Int64Counter
	allowedTotal  metric.Int64Counter
	rejectedTotal metric.Int64Counter
	failOpenTotal metric.Int64Counter
}

// NewOTelMetrics 创建未注册状态的指标上报器
func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{config: cfg}
}

// RegisterMetrics 注册全部 instrument，重复调用幂等
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.requestsTotal, "limiter_requests_total", "Total number of admission checks"},
		{&m.allowedTotal, "limiter_allowed_total", "Total number of allowed requests"},
		{&m.rejectedTotal, "limiter_rejected_total", "Total number of rejected requests"},
		{&m.failOpenTotal, "limiter_failopen_total", "Total number of unmetered admissions due to store failure"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return err
		}
		*c.dst = counter
	}

	m.registered = true
	return nil
}

// IsRegistered 是否已完成注册
func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// RecordAllowed 记录放行
func (m *OTelMetrics) RecordAllowed(ctx context.Context, resource, algorithm string) {
	if !m.IsRegistered() {
		return
	}

	opt := metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("algorithm", algorithm),
	)
	m.requestsTotal.Add(ctx, 1, opt)
	m.allowedTotal.Add(ctx, 1, opt)
}

// RecordRejected 记录拒绝
func (m *OTelMetrics) RecordRejected(ctx context.Context, resource, algorithm, reason string) {
	if !m.IsRegistered() {
		return
	}

	opt := metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("algorithm", algorithm),
		attribute.String("reason", reason),
	)
	m.requestsTotal.Add(ctx, 1, opt)
	m.rejectedTotal.Add(ctx, 1, opt)
}

// RecordFailOpen 记录降级放行。reason 区分 store_unavailable 与
// script_error，便于分别告警。
func (m *OTelMetrics) RecordFailOpen(ctx context.Context, resource, algorithm, reason string) {
	if !m.IsRegistered() {
		return
	}

	opt := metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("algorithm", algorithm),
		attribute.String("reason", reason),
	)
	m.requestsTotal.Add(ctx, 1, opt)
	m.failOpenTotal.Add(ctx, 1, opt)
}
