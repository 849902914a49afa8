package limiter

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// LoadProbe 自适应限流负载数据提供者（依赖注入）
//
// 使用说明：
//   - 实现此接口以提供系统负载（0.0-1.0，共享资源已消耗的比例）
//   - 如果未注入Probe，自适应限流按零负载计算
//   - 负载为本实例采样；集群聚合实现可通过同一接口替换注入
type LoadProbe interface {
	// LoadFactor 获取当前负载（0.0-1.0）
	LoadFactor() float64
}

// StaticLoadProbe is a fixed-value probe, mostly useful in tests and as a
// manual override.
type StaticLoadProbe float64

// LoadFactor 返回固定负载
func (p StaticLoadProbe) LoadFactor() float64 {
	return clamp01(float64(p))
}

// SampledLoadProbe samples a load function on a schedule and serves the
// last snapshot lock-free. The admission path only ever reads the
// snapshot; it never shares mutable state with the collector.
type SampledLoadProbe struct {
	sample    func() float64
	snapshot  atomic.Uint64 // math.Float64bits of the last sample
	scheduler gocron.Scheduler
}

// NewSampledLoadProbe 创建周期采样探针
//
// sample runs on the collector goroutine every interval; its result is
// clamped to [0,1] and published atomically.
func NewSampledLoadProbe(interval time.Duration, sample func() float64) (*SampledLoadProbe, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if sample == nil {
		return nil, fmt.Errorf("sample function is required")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler failed: %w", err)
	}

	probe := &SampledLoadProbe{
		sample:    sample,
		scheduler: scheduler,
	}
	probe.collect()

	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(probe.collect),
	); err != nil {
		return nil, fmt.Errorf("schedule load collector failed: %w", err)
	}
	scheduler.Start()

	return probe, nil
}

// LoadFactor 返回最近一次采样快照
func (p *SampledLoadProbe) LoadFactor() float64 {
	return math.Float64frombits(p.snapshot.Load())
}

// Close 停止采集
func (p *SampledLoadProbe) Close() error {
	return p.scheduler.Shutdown()
}

// collect 采样一次并发布快照
func (p *SampledLoadProbe) collect() {
	p.snapshot.Store(math.Float64bits(clamp01(p.sample())))
}
